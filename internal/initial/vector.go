package initial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/config"
	"NewsPulse/internal/modules/news/infrastructure/vectordb"
	"NewsPulse/pkg/zlog"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.uber.org/zap"
)

// NewVectorBackend 按 vectorConfig.provider 创建存储后端
func NewVectorBackend(ctx context.Context, conf *config.Config) (vectordb.Backend, error) {
	switch conf.VectorConfig.Provider {
	case "", "sqlite":
		b, err := vectordb.OpenSQLite(ctx, conf.VectorConfig.SQLite.Dir)
		if err != nil {
			return nil, err
		}
		zlog.Info("vector backend ready", zap.String("provider", "sqlite"), zap.String("path", b.Path()))
		return b, nil
	case "milvus":
		mc := conf.VectorConfig.Milvus
		if strings.TrimSpace(mc.Address) == "" {
			return nil, fmt.Errorf("milvus address is empty")
		}
		// 连接延迟到第一次访问，Milvus 不可达时按空索引运行
		b, err := vectordb.NewLazyMilvusBackend(func(dctx context.Context) (mclient.Client, error) {
			return NewMilvusClient(dctx, conf)
		}, time.Duration(mc.ConnectTimeoutMs)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		zlog.Info("vector backend configured",
			zap.String("provider", "milvus"),
			zap.String("address", mc.Address),
			zap.String("db", mc.DBName))
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", conf.VectorConfig.Provider)
	}
}

// NewVectorIndex 创建索引并探测已有集合；探测失败不致命，首次写入或检索时会重试
func NewVectorIndex(ctx context.Context, conf *config.Config) (*vectordb.Index, error) {
	backend, err := NewVectorBackend(ctx, conf)
	if err != nil {
		return nil, err
	}
	idx, err := vectordb.NewIndex(backend, conf.VectorConfig.Corpus)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	ictx, cancel := context.WithTimeout(ctx, time.Duration(conf.TimeoutConfig.SearchMs)*time.Millisecond)
	defer cancel()
	if err := idx.Initialize(ictx); err != nil {
		zlog.Warn("vector index unavailable at startup, treating as empty",
			zap.String("corpus", conf.VectorConfig.Corpus),
			zap.Error(err))
	}
	return idx, nil
}
