package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	chatErr  error
	lastChat request.ChatRequest
	cleared  []string
	history  map[string][]news.Turn
}

func (f *fakeChatService) CreateSession(context.Context) (*respond.CreateSessionRespond, error) {
	return &respond.CreateSessionRespond{SessionID: "new-session"}, nil
}

func (f *fakeChatService) Chat(_ context.Context, req request.ChatRequest) (*respond.ChatRespond, error) {
	f.lastChat = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, xerr.ErrClientInput
	}
	return &respond.ChatRespond{
		Answer:  "A storm hit the coast.",
		Sources: []news.Metadata{{Title: "Storm", Link: "https://x/a", PublishedAt: "2026-10-17", Source: "wire"}},
	}, nil
}

func (f *fakeChatService) History(_ context.Context, id string) (*respond.HistoryRespond, error) {
	turns := f.history[id]
	if turns == nil {
		turns = []news.Turn{}
	}
	return &respond.HistoryRespond{History: turns}, nil
}

func (f *fakeChatService) ClearSession(_ context.Context, id string) (*respond.MessageRespond, error) {
	f.cleared = append(f.cleared, id)
	return &respond.MessageRespond{Message: "Session cleared"}, nil
}

type fakeIngestService struct {
	got     []news.Article
	dropErr error
}

func (f *fakeIngestService) Ingest(_ context.Context, articles []news.Article) (*respond.IngestRespond, error) {
	if len(articles) == 0 {
		return nil, xerr.ErrNoArticles
	}
	f.got = articles
	return &respond.IngestRespond{Articles: len(articles), Passages: len(articles), Indexed: len(articles)}, nil
}

func (f *fakeIngestService) IngestFile(context.Context, string) (*respond.IngestRespond, error) {
	return &respond.IngestRespond{}, nil
}

func (f *fakeIngestService) DropIndex(context.Context) (*respond.MessageRespond, error) {
	if f.dropErr != nil {
		return nil, f.dropErr
	}
	return &respond.MessageRespond{Message: "Index dropped"}, nil
}

func (f *fakeIngestService) Health(context.Context) (*respond.HealthRespond, error) {
	return &respond.HealthRespond{Status: "ok", Documents: 7}, nil
}

func newTestRouter(chat *fakeChatService, ingest *fakeIngestService) *gin.Engine {
	return newTestRouterAsync(chat, ingest, nil)
}

func newTestRouterAsync(chat *fakeChatService, ingest *fakeIngestService, async service.AsyncIngestService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, NewChatHandler(chat), NewAdminHandler(ingest, async))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateSessionEndpoint(t *testing.T) {
	r := newTestRouter(&fakeChatService{}, &fakeIngestService{})
	w := do(r, http.MethodPost, "/api/session", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-session", decode(t, w)["sessionId"])
}

func TestChatEndpointSuccess(t *testing.T) {
	chat := &fakeChatService{}
	r := newTestRouter(chat, &fakeIngestService{})

	w := do(r, http.MethodPost, "/api/chat", `{"sessionId":"s1","message":"storm?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"answer": "A storm hit the coast.",
		"sources": [{"title":"Storm","link":"https://x/a","pubDate":"2026-10-17","source":"wire"}]
	}`, w.Body.String())
	assert.Equal(t, request.ChatRequest{SessionID: "s1", Message: "storm?"}, chat.lastChat)
}

func TestChatEndpointClientErrors(t *testing.T) {
	r := newTestRouter(&fakeChatService{}, &fakeIngestService{})

	for _, body := range []string{`{"sessionId":"s1"}`, `{"message":"hi"}`, `not json`} {
		w := do(r, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.NotEmpty(t, decode(t, w)["error"], body)
	}
}

func TestChatEndpointGenerationFailure(t *testing.T) {
	chat := &fakeChatService{chatErr: xerr.Wrap(xerr.ErrGeneration, errors.New("upstream 502"))}
	r := newTestRouter(chat, &fakeIngestService{})

	w := do(r, http.MethodPost, "/api/chat", `{"sessionId":"s1","message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "upstream")
}

func TestChatEndpointUnknownErrorIs500(t *testing.T) {
	chat := &fakeChatService{chatErr: errors.New("boom")}
	r := newTestRouter(chat, &fakeIngestService{})

	w := do(r, http.MethodPost, "/api/chat", `{"sessionId":"s1","message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, xerr.ErrServerError.Message, decode(t, w)["error"])
}

func TestHistoryEndpoint(t *testing.T) {
	chat := &fakeChatService{history: map[string][]news.Turn{
		"s1": {{Role: news.RoleUser, Content: "hello"}, {Role: news.RoleAssistant, Content: "hi"}},
	}}
	r := newTestRouter(chat, &fakeIngestService{})

	w := do(r, http.MethodGet, "/api/history/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi"}]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/history/unknown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())
}

func TestDeleteSessionEndpointIsIdempotent(t *testing.T) {
	chat := &fakeChatService{}
	r := newTestRouter(chat, &fakeIngestService{})

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodDelete, "/api/session/never-created", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Session cleared"}`, w.Body.String())
	}
	assert.Equal(t, []string{"never-created", "never-created"}, chat.cleared)
}

func TestAdminIngestEndpoint(t *testing.T) {
	ingest := &fakeIngestService{}
	r := newTestRouter(&fakeChatService{}, ingest)

	w := do(r, http.MethodPost, "/api/admin/ingest", `[{"title":"Storm","content":"hits coast","pubDate":"2026-10-17"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	result, ok := decode(t, w)["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), result["indexed"])
	require.Len(t, ingest.got, 1)
	assert.Equal(t, "2026-10-17", ingest.got[0].PubDate)

	w = do(r, http.MethodPost, "/api/admin/ingest", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/admin/ingest", `{"title":"not an array"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminIndexAndHealthEndpoints(t *testing.T) {
	ingest := &fakeIngestService{}
	r := newTestRouter(&fakeChatService{}, ingest)

	w := do(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","documents":7}`, w.Body.String())

	w = do(r, http.MethodDelete, "/api/admin/index", "")
	assert.Equal(t, http.StatusOK, w.Code)

	ingest.dropErr = xerr.New(xerr.ServiceUnavailable, "Vector index unavailable")
	w = do(r, http.MethodDelete, "/api/admin/index", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type fakeAsyncIngest struct{ got []news.Article }

func (f *fakeAsyncIngest) Enqueue(_ context.Context, articles []news.Article) (*respond.MessageRespond, error) {
	f.got = articles
	return &respond.MessageRespond{Message: "Articles queued"}, nil
}

func TestAdminIngestAsync(t *testing.T) {
	ingest := &fakeIngestService{}
	body := `[{"title":"Storm","content":"hits coast"}]`

	w := do(newTestRouter(&fakeChatService{}, ingest), http.MethodPost, "/api/admin/ingest?async=true", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	async := &fakeAsyncIngest{}
	w = do(newTestRouterAsync(&fakeChatService{}, ingest, async), http.MethodPost, "/api/admin/ingest?async=true", body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"message":"Articles queued"}`, w.Body.String())
	require.Len(t, async.got, 1)
	assert.Empty(t, ingest.got)
}
