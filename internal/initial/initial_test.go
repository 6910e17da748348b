package initial

import (
	"context"
	"strconv"
	"testing"
	"time"

	"NewsPulse/internal/config"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/infrastructure/session"
	"NewsPulse/internal/modules/news/infrastructure/vectordb"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionStoreFallsBackToNoop(t *testing.T) {
	conf := config.Default()
	store, client := NewSessionStore(context.Background(), conf)
	assert.Nil(t, client)
	assert.IsType(t, session.NoopStore{}, store)

	conf.RedisConfig.Host = "127.0.0.1"
	conf.RedisConfig.Port = 1
	store, client = NewSessionStore(context.Background(), conf)
	assert.Nil(t, client)
	assert.IsType(t, session.NoopStore{}, store)
}

func TestNewSessionStoreUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	conf := config.Default()
	conf.RedisConfig.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	conf.RedisConfig.Port = port

	store, client := NewSessionStore(context.Background(), conf)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	turns := []news.Turn{{Role: news.RoleUser, Content: "hello"}}
	require.NoError(t, store.Set(ctx, "s1", turns, time.Hour))
	assert.True(t, mr.Exists("session:s1"))
}

func TestNewVectorIndexSQLite(t *testing.T) {
	conf := config.Default()
	conf.VectorConfig.SQLite.Dir = t.TempDir()

	idx, err := NewVectorIndex(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	state, _ := idx.State()
	assert.Equal(t, vectordb.StateUninitialized, state)

	res, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestNewVectorBackendRejectsUnknownProvider(t *testing.T) {
	conf := config.Default()
	conf.VectorConfig.Provider = "faiss"
	_, err := NewVectorBackend(context.Background(), conf)
	assert.Error(t, err)

	conf.VectorConfig.Provider = "milvus"
	conf.VectorConfig.Milvus.Address = ""
	_, err = NewVectorBackend(context.Background(), conf)
	assert.Error(t, err)
}

func TestNewVectorIndexMilvusUnreachableIsNotFatal(t *testing.T) {
	conf := config.Default()
	conf.VectorConfig.Provider = "milvus"
	conf.VectorConfig.Milvus.Address = "127.0.0.1:1"
	conf.VectorConfig.Milvus.ConnectTimeoutMs = 200
	conf.TimeoutConfig.SearchMs = 500

	idx, err := NewVectorIndex(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	state, _ := idx.State()
	assert.Equal(t, vectordb.StateCreated, state)

	_, err = idx.Count(context.Background())
	assert.ErrorIs(t, err, news.ErrIndexUnavailable)
}
