package news

import "errors"

// 可降级的错误，由调用方决定是否继续
var (
	ErrIndexUnavailable  = errors.New("vector index unavailable")
	ErrIndexClosed       = errors.New("vector index closed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyVector       = errors.New("document vector is empty")
	ErrEmptyEmbedding    = errors.New("embedding provider returned no vector")
	ErrSessionStore      = errors.New("session store unavailable")
)
