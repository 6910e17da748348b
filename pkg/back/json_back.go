package back

import (
	"net/http"

	"NewsPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// ErrorBody 错误响应结构
type ErrorBody struct {
	Error string `json:"error"`
}

// Result 统一返回入口：成功时原样输出 data，失败时按 CodeError 映射状态码
func Result(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	// 判断是否为自定义错误
	if e, ok := xerr.As(err); ok {
		Error(c, e.Code, e.Message)
		return
	}

	// 默认为系统错误
	Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
}

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 错误返回，code 即 HTTP 状态码
func Error(c *gin.Context, code int, message string) {
	if code < 400 || code > 599 {
		code = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(code, ErrorBody{Error: message})
}
