package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/infrastructure/metrics"
	"NewsPulse/internal/modules/news/infrastructure/vectordb"
	"NewsPulse/pkg/xerr"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	embedder *fakeEmbedder
	index    *fakeIndex
	sessions *fakeSessions
	model    *fakeChatModel
	metrics  *metrics.Metrics
	pipeline *ChatPipeline
}

func newChatFixture(t *testing.T, opts ChatOptions) *chatFixture {
	t.Helper()
	f := &chatFixture{
		embedder: &fakeEmbedder{dim: 8},
		index:    &fakeIndex{},
		sessions: newFakeSessions(),
		model:    &fakeChatModel{answer: "Answer"},
		metrics:  metrics.New(),
	}
	r, err := NewRetriever(f.embedder, f.index, time.Second, time.Second)
	require.NoError(t, err)
	f.pipeline, err = NewChatPipeline(r, f.sessions, f.model, f.metrics, opts)
	require.NoError(t, err)
	return f
}

func seedDocs(t *testing.T, idx *fakeIndex, docs ...news.Document) {
	t.Helper()
	require.NoError(t, idx.AddDocuments(context.Background(), docs))
}

func TestChatZeroDocumentScenario(t *testing.T) {
	ctx := context.Background()
	backend, err := vectordb.OpenSQLite(ctx, t.TempDir())
	require.NoError(t, err)
	idx, err := vectordb.NewIndex(backend, "news_articles")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Initialize(ctx))

	sessions := newFakeSessions()
	chatModel := &fakeChatModel{answer: "No news found."}
	r, err := NewRetriever(&fakeEmbedder{dim: 8}, idx, time.Second, time.Second)
	require.NoError(t, err)
	p, err := NewChatPipeline(r, sessions, chatModel, nil, ChatOptions{SessionTTL: time.Hour})
	require.NoError(t, err)

	res, err := p.Execute(ctx, &ChatRequest{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, news.StageResponded, res.Stage)
	assert.Equal(t, "No news found.", res.Answer)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.Degraded)

	input := chatModel.lastInput()
	require.NotEmpty(t, input)
	assert.Equal(t, "Context:\n\n\nQuestion: hello", input[len(input)-1].Content)

	history, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []news.Turn{
		{Role: news.RoleUser, Content: "hello"},
		{Role: news.RoleAssistant, Content: "No news found."},
	}, history)
	assert.Equal(t, time.Hour, sessions.ttls["s1"])
}

func TestChatBuildsContextAndSourcesInRankOrder(t *testing.T) {
	f := newChatFixture(t, ChatOptions{SystemPrompt: "You are a news assistant."})
	seedDocs(t, f.index,
		news.Document{ID: "a", Text: "Storm hits coast", Metadata: news.Metadata{Title: "Storm", Source: "wire"}},
		news.Document{ID: "b", Text: "Rates rise", Metadata: news.Metadata{Title: "Rates"}},
		news.Document{ID: "c", Text: "Team wins", Metadata: news.Metadata{Title: "Sports"}},
		news.Document{ID: "d", Text: "Not returned", Metadata: news.Metadata{Title: "Extra"}},
	)

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "what happened?"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, 3, f.index.lastK)
	assert.Equal(t, []news.Metadata{{Title: "Storm", Source: "wire"}, {Title: "Rates"}, {Title: "Sports"}}, res.Sources)

	input := f.model.lastInput()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "You are a news assistant.", input[0].Content)
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, "Context:\nStorm hits coast\n\nRates rise\n\nTeam wins\n\nQuestion: what happened?", input[1].Content)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatRequests.WithLabelValues("responded")))
}

func TestChatIncludesHistoryWithRoles(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.sessions.data["s1"] = []news.Turn{
		{Role: news.RoleUser, Content: "first"},
		{Role: news.RoleAssistant, Content: "reply"},
	}

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "second"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	input := f.model.lastInput()
	require.Len(t, input, 3)
	assert.Equal(t, schema.User, input[0].Role)
	assert.Equal(t, "first", input[0].Content)
	assert.Equal(t, schema.Assistant, input[1].Role)
	assert.Equal(t, "reply", input[1].Content)

	assert.Equal(t, []news.Turn{
		{Role: news.RoleUser, Content: "first"},
		{Role: news.RoleAssistant, Content: "reply"},
		{Role: news.RoleUser, Content: "second"},
		{Role: news.RoleAssistant, Content: "Answer"},
	}, f.sessions.data["s1"])
}

func TestChatKeepsMessageVerbatim(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	msg := "  hello\n"

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: msg})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	input := f.model.lastInput()
	require.NotEmpty(t, input)
	assert.Equal(t, "Context:\n\n\nQuestion: "+msg, input[len(input)-1].Content)
	assert.Equal(t, []news.Turn{
		{Role: news.RoleUser, Content: msg},
		{Role: news.RoleAssistant, Content: "Answer"},
	}, f.sessions.data["s1"])
}

func TestChatRejectsMissingInput(t *testing.T) {
	cases := []ChatRequest{
		{SessionID: "", Message: "hello"},
		{SessionID: "s1", Message: ""},
		{SessionID: "s1", Message: "   "},
		{SessionID: " ", Message: "hello"},
	}
	for _, req := range cases {
		f := newChatFixture(t, ChatOptions{})
		res, err := f.pipeline.Execute(context.Background(), &req)
		require.NoError(t, err)

		assert.Equal(t, news.StageFailed, res.Stage)
		assert.ErrorIs(t, res.Err, xerr.ErrClientInput)
		assert.Empty(t, f.embedder.calls, "no retrieval for %+v", req)
		assert.Zero(t, f.model.callCount(), "no generation for %+v", req)
		assert.Empty(t, f.sessions.data)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatRequests.WithLabelValues("client_error")))
	}
}

func TestChatEmbeddingFailureDegrades(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.embedder.err = errBoom
	seedDocs(t, f.index, news.Document{ID: "a", Text: "Storm hits coast"})

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "storm?"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, news.StageResponded, res.Stage)
	assert.Empty(t, res.Sources)
	assert.Equal(t, []string{"embedding"}, res.Degraded)
	assert.Zero(t, f.index.lastK, "search skipped without a query vector")
	assert.Equal(t, "Context:\n\n\nQuestion: storm?", f.model.lastInput()[0].Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalDegrade.WithLabelValues("embedding")))
}

func TestChatEmptyEmbeddingDegrades(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.embedder.empty = true

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "storm?"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"embedding"}, res.Degraded)
	assert.Empty(t, res.Sources)
}

func TestChatSearchFailureDegrades(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.index.searchErr = news.ErrIndexUnavailable

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "storm?"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, news.StageResponded, res.Stage)
	assert.Equal(t, []string{"search"}, res.Degraded)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalDegrade.WithLabelValues("search")))
}

func TestChatHistoryLoadFailureDegrades(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.sessions.getErr = news.ErrSessionStore

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, []string{"history"}, res.Degraded)
	assert.Len(t, f.model.lastInput(), 1)
	assert.Equal(t, []news.Turn{
		{Role: news.RoleUser, Content: "hi"},
		{Role: news.RoleAssistant, Content: "Answer"},
	}, f.sessions.data["s1"])
}

func TestChatGenerationFailureIsFatal(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.model.err = errBoom
	f.sessions.data["s1"] = []news.Turn{{Role: news.RoleUser, Content: "before"}}

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, news.StageFailed, res.Stage)
	require.Error(t, res.Err)
	ce, ok := xerr.As(res.Err)
	require.True(t, ok)
	assert.Equal(t, xerr.InternalServerError, ce.Code)
	assert.ErrorIs(t, res.Err, errBoom)
	assert.Empty(t, res.Answer)

	// 失败时不写历史
	assert.Equal(t, []news.Turn{{Role: news.RoleUser, Content: "before"}}, f.sessions.data["s1"])
	assert.Empty(t, f.sessions.setCtxs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatRequests.WithLabelValues("generation_failed")))
}

func TestChatGenerationTimeoutIsFatal(t *testing.T) {
	f := newChatFixture(t, ChatOptions{GenerateTimeout: 20 * time.Millisecond})
	f.model.delay = time.Second

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, news.StageFailed, res.Stage)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded))
}

func TestChatPersistFailureStillResponds(t *testing.T) {
	f := newChatFixture(t, ChatOptions{})
	f.sessions.setErr = news.ErrSessionStore

	res, err := f.pipeline.Execute(context.Background(), &ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, news.StageResponded, res.Stage)
	assert.Equal(t, "Answer", res.Answer)
	assert.Equal(t, []string{"persist"}, res.Degraded)
}

func TestNewChatPipelineValidatesDependencies(t *testing.T) {
	r, err := NewRetriever(&fakeEmbedder{dim: 8}, &fakeIndex{}, 0, 0)
	require.NoError(t, err)

	_, err = NewChatPipeline(nil, newFakeSessions(), &fakeChatModel{}, nil, ChatOptions{})
	assert.Error(t, err)
	_, err = NewChatPipeline(r, nil, &fakeChatModel{}, nil, ChatOptions{})
	assert.Error(t, err)
	_, err = NewChatPipeline(r, newFakeSessions(), nil, nil, ChatOptions{})
	assert.Error(t, err)

	p, err := NewChatPipeline(r, newFakeSessions(), &fakeChatModel{}, nil, ChatOptions{})
	require.NoError(t, err)
	_, err = p.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildUserPrompt(t *testing.T) {
	assert.Equal(t, "Context:\nA\n\nB\n\nQuestion: q", BuildUserPrompt("A\n\nB", "q"))
}
