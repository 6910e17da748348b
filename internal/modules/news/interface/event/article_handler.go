package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/internal/modules/news/infrastructure/mq"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

// ArticleEventHandler 消费文章 topic：消息体为单篇文章或文章数组
type ArticleEventHandler struct {
	ingestSvc service.IngestService
}

func NewArticleEventHandler(svc service.IngestService) *ArticleEventHandler {
	return &ArticleEventHandler{ingestSvc: svc}
}

var _ mq.Handler = (*ArticleEventHandler)(nil)

// Handle 格式错误的消息直接确认丢弃，导入失败返回错误以便重投
func (h *ArticleEventHandler) Handle(ctx context.Context, msg mq.Message) error {
	items, err := decodeArticles(msg.Value)
	if err != nil {
		zlog.Warn("drop malformed article message",
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
			zap.Error(err))
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	res, err := h.ingestSvc.Ingest(ctx, request.ToArticles(items))
	if err != nil {
		return err
	}
	zlog.Debug("article message ingested",
		zap.String("topic", msg.Topic),
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", res.Failed))
	return nil
}

func decodeArticles(value []byte) ([]request.ArticleRequest, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if trimmed[0] == '[' {
		var items []request.ArticleRequest
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item request.ArticleRequest
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}
	return []request.ArticleRequest{item}, nil
}
