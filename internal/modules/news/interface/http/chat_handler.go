package http

import (
	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/pkg/back"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler 会话与问答 HTTP Handler
type ChatHandler struct {
	chatSvc service.ChatService
}

// NewChatHandler 创建问答 Handler
func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// CreateSession 路由: POST /api/session
func (h *ChatHandler) CreateSession(c *gin.Context) {
	data, err := h.chatSvc.CreateSession(c.Request.Context())
	back.Result(c, data, err)
}

// Chat 处理问答请求
//
// 路由: POST /api/chat
// 请求体: {sessionId, message}
// 响应体: 200 {answer, sources} | 400 {error} | 500 {error}
func (h *ChatHandler) Chat(c *gin.Context) {
	var req request.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind chat request failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrClientInput.Message)
		return
	}
	data, err := h.chatSvc.Chat(c.Request.Context(), req)
	if err != nil {
		zlog.Info("chat request failed", zap.String("session_id", req.SessionID), zap.Error(err))
	}
	back.Result(c, data, err)
}

// History 路由: GET /api/history/:sessionId
func (h *ChatHandler) History(c *gin.Context) {
	data, err := h.chatSvc.History(c.Request.Context(), c.Param("sessionId"))
	back.Result(c, data, err)
}

// ClearSession 路由: DELETE /api/session/:sessionId，会话不存在也返回成功
func (h *ChatHandler) ClearSession(c *gin.Context) {
	data, err := h.chatSvc.ClearSession(c.Request.Context(), c.Param("sessionId"))
	back.Result(c, data, err)
}
