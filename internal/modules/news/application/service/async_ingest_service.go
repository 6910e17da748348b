package service

import (
	"context"
	"encoding/json"
	"strings"

	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/infrastructure/mq"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

// AsyncIngestService 把文章投递到 Kafka，由消费者顺序导入
type AsyncIngestService interface {
	Enqueue(ctx context.Context, articles []news.Article) (*respond.MessageRespond, error)
}

type asyncIngestService struct {
	publisher mq.Publisher
	topic     string
}

func NewAsyncIngestService(publisher mq.Publisher, topic string) AsyncIngestService {
	return &asyncIngestService{publisher: publisher, topic: strings.TrimSpace(topic)}
}

func (s *asyncIngestService) Enqueue(ctx context.Context, articles []news.Article) (*respond.MessageRespond, error) {
	if len(articles) == 0 {
		return nil, xerr.ErrNoArticles
	}

	for i, a := range articles {
		value, err := json.Marshal(a)
		if err != nil {
			return nil, xerr.Wrap(xerr.ErrServerError, err)
		}
		key := a.Link
		if key == "" {
			key = a.Title
		}
		if _, err := s.publisher.Publish(ctx, mq.Message{
			Topic:   s.topic,
			Key:     []byte(key),
			Value:   value,
			Headers: map[string]string{"content-type": "application/json"},
		}); err != nil {
			zlog.Error("publish article failed",
				zap.String("topic", s.topic),
				zap.Int("published", i),
				zap.Error(err))
			return nil, xerr.Wrap(xerr.New(xerr.ServiceUnavailable, "Article queue unavailable"), err)
		}
	}

	zlog.Info("articles queued", zap.String("topic", s.topic), zap.Int("articles", len(articles)))
	return &respond.MessageRespond{Message: "Articles queued"}, nil
}
