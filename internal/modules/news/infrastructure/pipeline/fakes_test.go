package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"NewsPulse/internal/modules/news/domain/news"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var errBoom = errors.New("boom")

// fakeEmbedder 词袋哈希向量；err 非空时所有调用失败
type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	err   error
	empty bool
	calls []string
	at    []time.Time
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, texts...)
	f.at = append(f.at, time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return [][]float64{}, nil
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, hashVector(t, f.dim))
	}
	return out, nil
}

func hashVector(text string, dim int) []float64 {
	v := make([]float64, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%dim]++
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// fakeIndex 内存索引，按写入顺序返回前 k 条
type fakeIndex struct {
	mu        sync.Mutex
	docs      []news.Document
	searchErr error
	addErr    error
	lastK     int
}

func (f *fakeIndex) Initialize(context.Context) error { return nil }

func (f *fakeIndex) AddDocuments(_ context.Context, docs []news.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, k int) ([]news.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = k
	if f.searchErr != nil {
		return []news.SearchResult{}, f.searchErr
	}
	out := []news.SearchResult{}
	for i, d := range f.docs {
		if i >= k {
			break
		}
		out = append(out, news.SearchResult{ID: d.ID, Text: d.Text, Score: 1, Metadata: d.Metadata})
	}
	return out, nil
}

func (f *fakeIndex) DropCollection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = nil
	return nil
}

func (f *fakeIndex) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func (f *fakeIndex) Close() error { return nil }

// fakeSessions 内存会话存储，可分别注入读写错误
type fakeSessions struct {
	mu      sync.Mutex
	data    map[string][]news.Turn
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setCtxs []error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: map[string][]news.Turn{}, ttls: map[string]time.Duration{}}
}

func (f *fakeSessions) Get(_ context.Context, id string) ([]news.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return []news.Turn{}, f.getErr
	}
	turns, ok := f.data[id]
	if !ok {
		return []news.Turn{}, nil
	}
	return append([]news.Turn(nil), turns...), nil
}

func (f *fakeSessions) Set(ctx context.Context, id string, turns []news.Turn, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCtxs = append(f.setCtxs, ctx.Err())
	if f.setErr != nil {
		return f.setErr
	}
	f.data[id] = append([]news.Turn(nil), turns...)
	f.ttls[id] = ttl
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, id)
	return nil
}

// fakeChatModel 记录输入；answer 为空时回显最后一条用户消息
type fakeChatModel struct {
	mu     sync.Mutex
	answer string
	err    error
	delay  time.Duration
	inputs [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != "" {
		return schema.AssistantMessage(f.answer, nil), nil
	}
	return schema.AssistantMessage("echo: "+input[len(input)-1].Content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

func (f *fakeChatModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}
