package repository

import (
	"context"

	"NewsPulse/internal/modules/news/domain/news"
)

// VectorIndex 是 domain 层定义的向量索引能力抽象。
//
// 设计约束：
// 1) application / domain 只依赖本接口，不直接依赖 SQLite 或 Milvus SDK。
// 2) 集合在第一次写入时才创建，维度由第一批文档决定；之后维度不一致的写入直接失败。
// 3) 未初始化（从未写入）时 Search 返回空列表而不是错误。
type VectorIndex interface {
	// Initialize 打开后端并探测集合是否存在，可重复调用
	Initialize(ctx context.Context) error
	// AddDocuments 空列表为 no-op
	AddDocuments(ctx context.Context, docs []news.Document) error
	// Search 按 cosine distance 升序返回最多 k 条
	Search(ctx context.Context, vector []float32, k int) ([]news.SearchResult, error)
	// DropCollection 删除集合并回到未初始化状态
	DropCollection(ctx context.Context) error
	// Count 文档总数，未初始化时为 0
	Count(ctx context.Context) (int64, error)
	Close() error
}
