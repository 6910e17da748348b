package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// Options 安全中间件配置
type Options struct {
	Host        string
	Port        int
	SSLRedirect bool // 仅在部署了证书时开启
}

// TlsHandler 设置安全响应头，按需把 http 重定向到 https
func TlsHandler(opts Options) gin.HandlerFunc {
	sslHost := ""
	if opts.SSLRedirect && opts.Host != "" {
		sslHost = opts.Host + ":" + strconv.Itoa(opts.Port)
	}
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:        opts.SSLRedirect,
		SSLHost:            sslHost,
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})

	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)

		// If there was an error, do not continue.
		if err != nil {
			// Process 已经写入了重定向响应，这里只中止 Gin 的处理链
			c.Abort()
			return
		}

		c.Next()
	}
}
