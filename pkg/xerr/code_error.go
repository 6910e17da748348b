package xerr

import (
	"errors"
	"fmt"
)

// CodeError 自定义错误结构，Code 直接对应 HTTP 状态码
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Code: %d, Message: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// Unwrap 返回底层原因，供 errors.Is/As 使用
func (e *CodeError) Unwrap() error { return e.cause }

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// Wrap 以 base 的 Code/Message 包装底层错误，对外仍只暴露 Message
func Wrap(base *CodeError, cause error) *CodeError {
	if base == nil {
		base = ErrServerError
	}
	return &CodeError{Code: base.Code, Message: base.Message, cause: cause}
}

// As 从错误链中取出 CodeError
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "Internal server error")
	ErrParam       = New(BadRequest, "Invalid request body")
	// ErrClientInput 缺少 sessionId 或 message
	ErrClientInput = New(BadRequest, "sessionId and message are required")
	// ErrGeneration 模型调用失败，不暴露底层原因
	ErrGeneration = New(InternalServerError, "Internal server error")
	ErrNoArticles = New(BadRequest, "at least one article is required")
)
