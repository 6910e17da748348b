package vectordb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/pkg/util"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

// State 索引生命周期状态
type State int

const (
	StateCreated       State = iota // 尚未探测后端
	StateUninitialized              // 后端可用，集合不存在
	StateReady                      // 集合存在，维度已固定
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Index 懒创建的向量索引，集合在第一次写入时由第一批文档的维度建立。
//
// mu 的写锁只在状态迁移（探测、建表、删表、关闭）时持有；
// Ready 之后的写入和检索只持读锁，可以并发执行。
type Index struct {
	backend    Backend
	collection string

	mu    sync.RWMutex
	state State
	dim   int
}

var _ repository.VectorIndex = (*Index)(nil)

// NewIndex 创建索引，不访问后端
func NewIndex(backend Backend, collection string) (*Index, error) {
	if backend == nil {
		return nil, errors.New("vector backend is nil")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, errors.New("collection is empty")
	}
	return &Index{backend: backend, collection: collection, state: StateCreated}, nil
}

// State 当前状态与维度（仅 Ready 时维度有效）
func (x *Index) State() (State, int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state, x.dim
}

func (x *Index) Initialize(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.initLocked(ctx)
}

// initLocked 调用方必须持有写锁
func (x *Index) initLocked(ctx context.Context) error {
	switch x.state {
	case StateClosed:
		return news.ErrIndexClosed
	case StateReady:
		return nil
	}

	exists, dim, err := x.backend.Describe(ctx, x.collection)
	if err != nil {
		return unavailable("describe", err)
	}
	if exists && dim > 0 {
		x.state = StateReady
		x.dim = dim
	} else {
		x.state = StateUninitialized
		x.dim = 0
	}
	zlog.Info("vector index initialized",
		zap.String("collection", x.collection),
		zap.String("state", x.state.String()),
		zap.Int("dim", x.dim))
	return nil
}

func (x *Index) AddDocuments(ctx context.Context, docs []news.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch, dim, err := prepareBatch(docs)
	if err != nil {
		return err
	}

	// 快路径：集合已存在
	x.mu.RLock()
	if x.state == StateReady {
		defer x.mu.RUnlock()
		return x.insertReady(ctx, batch, dim)
	}
	x.mu.RUnlock()

	// 慢路径：持写锁完成探测/建表，保证只有一个调用者建表
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == StateCreated {
		if err := x.initLocked(ctx); err != nil {
			return err
		}
	}
	switch x.state {
	case StateClosed:
		return news.ErrIndexClosed
	case StateReady:
		return x.insertReady(ctx, batch, dim)
	}

	if err := x.backend.Create(ctx, x.collection, dim); err != nil {
		if !errors.Is(err, ErrCollectionExists) {
			return unavailable("create", err)
		}
		// 其他进程已建表，以后端记录的维度为准
		exists, existing, derr := x.backend.Describe(ctx, x.collection)
		if derr != nil || !exists {
			return unavailable("describe", errors.Join(err, derr))
		}
		x.state, x.dim = StateReady, existing
		return x.insertReady(ctx, batch, dim)
	}
	x.state, x.dim = StateReady, dim
	zlog.Info("vector collection created",
		zap.String("collection", x.collection),
		zap.Int("dim", dim))

	return x.insertReady(ctx, batch, dim)
}

// insertReady 调用方持有读锁或写锁，且 state == StateReady
func (x *Index) insertReady(ctx context.Context, batch []news.Document, dim int) error {
	if dim != x.dim {
		return fmt.Errorf("%w: collection %s has dim %d, got %d", news.ErrDimensionMismatch, x.collection, x.dim, dim)
	}
	if err := x.backend.Insert(ctx, x.collection, batch); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]news.SearchResult, error) {
	empty := []news.SearchResult{}
	if k <= 0 {
		return empty, nil
	}
	if err := x.ensureProbed(ctx); err != nil {
		return empty, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	switch x.state {
	case StateClosed:
		return empty, news.ErrIndexClosed
	case StateReady:
	default:
		return empty, nil
	}
	if len(vector) != x.dim {
		return empty, fmt.Errorf("%w: query dim %d, collection dim %d", news.ErrDimensionMismatch, len(vector), x.dim)
	}

	hits, err := x.backend.Search(ctx, x.collection, vector, k)
	if err != nil {
		return empty, unavailable("search", err)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Seq < hits[j].Seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]news.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, news.SearchResult{
			ID:       h.Doc.ID,
			Text:     h.Doc.Text,
			Score:    1 - h.Distance,
			Metadata: h.Doc.Metadata,
		})
	}
	return out, nil
}

func (x *Index) DropCollection(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == StateClosed {
		return news.ErrIndexClosed
	}
	if err := x.backend.Drop(ctx, x.collection); err != nil {
		return unavailable("drop", err)
	}
	x.state, x.dim = StateUninitialized, 0
	zlog.Info("vector collection dropped", zap.String("collection", x.collection))
	return nil
}

func (x *Index) Count(ctx context.Context) (int64, error) {
	if err := x.ensureProbed(ctx); err != nil {
		return 0, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	switch x.state {
	case StateClosed:
		return 0, news.ErrIndexClosed
	case StateReady:
	default:
		return 0, nil
	}
	n, err := x.backend.Count(ctx, x.collection)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == StateClosed {
		return nil
	}
	x.state, x.dim = StateClosed, 0
	return x.backend.Close()
}

// ensureProbed 首次使用时补做 Initialize
func (x *Index) ensureProbed(ctx context.Context) error {
	x.mu.RLock()
	st := x.state
	x.mu.RUnlock()
	if st != StateCreated {
		return nil
	}
	return x.Initialize(ctx)
}

// prepareBatch 校验同批维度一致，并为缺失 ID 的文档补 UUID
func prepareBatch(docs []news.Document) ([]news.Document, int, error) {
	dim := len(docs[0].Vector)
	batch := make([]news.Document, len(docs))
	for i, d := range docs {
		if len(d.Vector) == 0 {
			return nil, 0, fmt.Errorf("%w: document %q", news.ErrEmptyVector, d.ID)
		}
		if len(d.Vector) != dim {
			return nil, 0, fmt.Errorf("%w: batch mixes dim %d and %d", news.ErrDimensionMismatch, dim, len(d.Vector))
		}
		if strings.TrimSpace(d.ID) == "" {
			d.ID = util.GenerateUUID()
		}
		batch[i] = d
	}
	return batch, dim, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", news.ErrIndexUnavailable, op, err)
}
