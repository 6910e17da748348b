package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/chunking"
	"NewsPulse/internal/modules/news/infrastructure/metrics"
	"NewsPulse/internal/modules/news/infrastructure/ratelimit"
	"NewsPulse/pkg/util"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

type IngestResult struct {
	Articles   int   `json:"articles"`
	Truncated  int   `json:"truncated"`
	Passages   int   `json:"passages"`
	Indexed    int   `json:"indexed"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// IngestPipeline 顺序导入新闻：切分 -> 限速 -> 向量化 -> 写入索引
type IngestPipeline struct {
	retriever   *Retriever
	index       repository.VectorIndex
	chunker     *chunking.Chunker
	limiter     *ratelimit.Limiter
	metrics     *metrics.Metrics
	maxArticles int
}

// NewIngestPipeline chunker 与 metrics 可为 nil；limiter 为 nil 时不限速
func NewIngestPipeline(
	retriever *Retriever,
	index repository.VectorIndex,
	chunker *chunking.Chunker,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	maxArticles int,
) (*IngestPipeline, error) {
	if retriever == nil || index == nil {
		return nil, fmt.Errorf("required dependencies are nil")
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(0)
	}
	if maxArticles <= 0 {
		maxArticles = 50
	}
	return &IngestPipeline{
		retriever:   retriever,
		index:       index,
		chunker:     chunker,
		limiter:     limiter,
		metrics:     m,
		maxArticles: maxArticles,
	}, nil
}

// Ingest 单篇失败只计数不中断；ctx 取消时返回已完成部分与 ctx 错误
func (p *IngestPipeline) Ingest(ctx context.Context, articles []news.Article) (*IngestResult, error) {
	start := time.Now()
	res := &IngestResult{}

	if len(articles) > p.maxArticles {
		res.Truncated = len(articles) - p.maxArticles
		articles = articles[:p.maxArticles]
	}
	res.Articles = len(articles)

	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
		p.metrics.Ingested("indexed", res.Indexed)
		p.metrics.Ingested("skipped", res.Skipped)
		p.metrics.Ingested("failed", res.Failed)
	}()

	for i, a := range articles {
		if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Content) == "" {
			res.Skipped++
			continue
		}

		passages, err := p.split(ctx, a.Text())
		if err != nil {
			zlog.Warn("split article failed, indexing whole text",
				zap.Int("article", i),
				zap.String("title", util.TruncateRunes(a.Title, 80)),
				zap.Error(err))
			passages = []string{a.Text()}
		}

		for _, text := range passages {
			res.Passages++
			if err := p.limiter.Wait(ctx); err != nil {
				return res, err
			}

			vec, err := p.retriever.EmbedQuery(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed++
				zlog.Warn("embed article failed",
					zap.Int("article", i),
					zap.String("title", util.TruncateRunes(a.Title, 80)),
					zap.Error(err))
				continue
			}

			doc := news.Document{
				ID:       util.GenerateUUID(),
				Text:     text,
				Vector:   vec,
				Metadata: a.Metadata(),
			}
			if err := p.index.AddDocuments(ctx, []news.Document{doc}); err != nil {
				res.Failed++
				zlog.Warn("index article failed",
					zap.Int("article", i),
					zap.String("title", util.TruncateRunes(a.Title, 80)),
					zap.Error(err))
				continue
			}
			res.Indexed++
		}
	}

	zlog.Info("ingest done",
		zap.Int("articles", res.Articles),
		zap.Int("truncated", res.Truncated),
		zap.Int("passages", res.Passages),
		zap.Int("indexed", res.Indexed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))

	return res, nil
}

func (p *IngestPipeline) split(ctx context.Context, text string) ([]string, error) {
	if !p.chunker.Enabled() {
		return []string{text}, nil
	}
	return p.chunker.Split(ctx, text)
}
