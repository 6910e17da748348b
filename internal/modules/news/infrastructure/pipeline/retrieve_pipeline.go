package pipeline

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"

	"github.com/cloudwego/eino/components/embedding"
)

// Retriever 向量化 + 检索，两步各自带超时。
//
// 设计原则：
// 1. 只依赖 domain 层接口（VectorIndex）与 Eino Embedder，不直接依赖存储 SDK
// 2. 失败以 error 返回，是否降级由调用方决定
type Retriever struct {
	embedder      embedding.Embedder
	index         repository.VectorIndex
	embedTimeout  time.Duration
	searchTimeout time.Duration
}

func NewRetriever(embedder embedding.Embedder, index repository.VectorIndex, embedTimeout, searchTimeout time.Duration) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is nil")
	}
	return &Retriever{
		embedder:      embedder,
		index:         index,
		embedTimeout:  embedTimeout,
		searchTimeout: searchTimeout,
	}, nil
}

// EmbedQuery 单条文本向量化；返回空向量视为失败
func (r *Retriever) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, r.embedTimeout)
	defer cancel()

	vecs, err := r.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, news.ErrEmptyEmbedding
	}
	return toFloat32(vecs[0]), nil
}

// SearchVector 在索引中检索 top-k
func (r *Retriever) SearchVector(ctx context.Context, vec []float32, k int) ([]news.SearchResult, error) {
	ctx, cancel := withTimeout(ctx, r.searchTimeout)
	defer cancel()
	return r.index.Search(ctx, vec, k)
}

// Retrieve 文本检索：EmbedQuery + SearchVector
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]news.SearchResult, error) {
	vec, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return []news.SearchResult{}, fmt.Errorf("embed query: %w", err)
	}
	return r.SearchVector(ctx, vec, k)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}

// withTimeout d <= 0 时不额外设置超时
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
