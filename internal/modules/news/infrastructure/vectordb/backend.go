package vectordb

import (
	"context"
	"errors"

	"NewsPulse/internal/modules/news/domain/news"
)

// ErrCollectionExists Create 时集合已存在
var ErrCollectionExists = errors.New("collection already exists")

// Hit 后端返回的候选结果，Vector 字段不回填
type Hit struct {
	Doc      news.Document
	Distance float64 // cosine distance，越小越相似
	Seq      int64   // 写入顺序，距离相同时按它排序
}

// Backend 向量存储后端（SQLite / Milvus）
type Backend interface {
	// Describe 集合是否存在以及其向量维度
	Describe(ctx context.Context, collection string) (exists bool, dim int, err error)
	// Create 以给定维度创建集合；已存在时返回 ErrCollectionExists
	Create(ctx context.Context, collection string, dim int) error
	Insert(ctx context.Context, collection string, docs []news.Document) error
	// Search 返回最多 k 条候选，顺序不作保证
	Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)
	// Drop 集合不存在时为 no-op
	Drop(ctx context.Context, collection string) error
	Count(ctx context.Context, collection string) (int64, error)
	Close() error
}
