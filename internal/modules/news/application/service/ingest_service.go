package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/pipeline"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

var errIndexUnavailable = xerr.New(xerr.ServiceUnavailable, "Vector index unavailable")

// IngestService 新闻导入与索引管理
type IngestService interface {
	Ingest(ctx context.Context, articles []news.Article) (*respond.IngestRespond, error)
	// IngestFile 导入 JSON 数组文件（启动时的种子数据）
	IngestFile(ctx context.Context, path string) (*respond.IngestRespond, error)
	DropIndex(ctx context.Context) (*respond.MessageRespond, error)
	Health(ctx context.Context) (*respond.HealthRespond, error)
}

type ingestServiceImpl struct {
	pipeline *pipeline.IngestPipeline
	index    repository.VectorIndex
}

func NewIngestService(p *pipeline.IngestPipeline, index repository.VectorIndex) IngestService {
	return &ingestServiceImpl{pipeline: p, index: index}
}

func (s *ingestServiceImpl) Ingest(ctx context.Context, articles []news.Article) (*respond.IngestRespond, error) {
	if len(articles) == 0 {
		return nil, xerr.ErrNoArticles
	}
	if s.pipeline == nil {
		return nil, xerr.Wrap(xerr.ErrServerError, fmt.Errorf("ingest pipeline is nil"))
	}
	res, err := s.pipeline.Ingest(ctx, articles)
	if err != nil {
		return nil, xerr.Wrap(xerr.ErrServerError, err)
	}
	return toIngestRespond(res), nil
}

func (s *ingestServiceImpl) IngestFile(ctx context.Context, path string) (*respond.IngestRespond, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var items []request.ArticleRequest
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	zlog.Info("ingesting seed file", zap.String("path", path), zap.Int("articles", len(items)))
	if len(items) == 0 {
		return &respond.IngestRespond{}, nil
	}
	return s.Ingest(ctx, request.ToArticles(items))
}

func (s *ingestServiceImpl) DropIndex(ctx context.Context) (*respond.MessageRespond, error) {
	if err := s.index.DropCollection(ctx); err != nil {
		zlog.Error("drop vector collection failed", zap.Error(err))
		return nil, xerr.Wrap(errIndexUnavailable, err)
	}
	zlog.Info("vector collection dropped")
	return &respond.MessageRespond{Message: "Index dropped"}, nil
}

func (s *ingestServiceImpl) Health(ctx context.Context) (*respond.HealthRespond, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		zlog.Warn("count vector documents failed", zap.Error(err))
		return &respond.HealthRespond{Status: "degraded"}, nil
	}
	return &respond.HealthRespond{Status: "ok", Documents: n}, nil
}

func toIngestRespond(res *pipeline.IngestResult) *respond.IngestRespond {
	if res == nil {
		return &respond.IngestRespond{}
	}
	return &respond.IngestRespond{
		Articles:   res.Articles,
		Truncated:  res.Truncated,
		Passages:   res.Passages,
		Indexed:    res.Indexed,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		DurationMs: res.DurationMs,
	}
}
