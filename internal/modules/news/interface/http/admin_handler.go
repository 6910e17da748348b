package http

import (
	"net/http"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/pkg/back"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	ingestSvc service.IngestService
	asyncSvc  service.AsyncIngestService
}

// NewAdminHandler asyncSvc 为 nil 时不支持 ?async=true
func NewAdminHandler(ingestSvc service.IngestService, asyncSvc service.AsyncIngestService) *AdminHandler {
	return &AdminHandler{ingestSvc: ingestSvc, asyncSvc: asyncSvc}
}

// Ingest 路由: POST /api/admin/ingest，请求体为文章数组
//
// ?async=true 时投递到 Kafka 并返回 202
func (h *AdminHandler) Ingest(c *gin.Context) {
	var items []request.ArticleRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		zlog.Warn("bind ingest request failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	if c.Query("async") == "true" {
		if h.asyncSvc == nil {
			back.Error(c, xerr.BadRequest, "async ingest requires kafka")
			return
		}
		data, err := h.asyncSvc.Enqueue(c.Request.Context(), request.ToArticles(items))
		if err != nil {
			back.Result(c, nil, err)
			return
		}
		c.JSON(http.StatusAccepted, data)
		return
	}
	data, err := h.ingestSvc.Ingest(c.Request.Context(), request.ToArticles(items))
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Success(c, respond.IngestResultRespond{Result: *data})
}

// DropIndex 路由: DELETE /api/admin/index
func (h *AdminHandler) DropIndex(c *gin.Context) {
	data, err := h.ingestSvc.DropIndex(c.Request.Context())
	back.Result(c, data, err)
}

// Health 路由: GET /api/health
func (h *AdminHandler) Health(c *gin.Context) {
	data, err := h.ingestSvc.Health(c.Request.Context())
	back.Result(c, data, err)
}
