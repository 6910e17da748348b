package pipeline

import (
	"context"
	"strings"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// chatState Graph内部状态（在节点间传递）
type chatState struct {
	Req         *ChatRequest
	SessionID   string
	Message     string
	Stage       news.ChatStage
	QueryVec    []float32
	Context     string
	Sources     []news.Metadata
	History     []news.Turn
	Answer      string
	Degraded    []string
	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	HistoryMs   int64
	LLMMs       int64
	Err         error
}

func (st *chatState) fail(err error) {
	st.Err = err
	st.Stage = news.StageFailed
}

func (st *chatState) degrade(stage string) {
	st.Degraded = append(st.Degraded, stage)
}

// Node 1: Receive - 校验输入
func (p *ChatPipeline) receiveNode(_ context.Context, req *ChatRequest, _ ...any) (*chatState, error) {
	st := &chatState{
		Req:     req,
		Start:   time.Now(),
		Stage:   news.StageReceived,
		Sources: []news.Metadata{},
		History: []news.Turn{},
	}

	st.SessionID = strings.TrimSpace(req.SessionID)
	// 消息原样进入 prompt 与历史，只在校验时去空白
	st.Message = req.Message
	if st.SessionID == "" || strings.TrimSpace(st.Message) == "" {
		st.fail(xerr.ErrClientInput)
		return st, nil
	}

	zlog.Debug("chat request received",
		zap.String("session_id", st.SessionID),
		zap.Int("message_len", len(st.Message)))
	return st, nil
}

// Node 2: EmbedQuery - 问题向量化，失败降级为无向量
func (p *ChatPipeline) embedQueryNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	st.Stage = news.StageEmbeddingQuery

	t0 := time.Now()
	vec, err := p.retriever.EmbedQuery(ctx, st.Message)
	st.EmbeddingMs = time.Since(t0).Milliseconds()
	p.metrics.ObserveStage("embedding", time.Since(t0))

	if err != nil {
		st.degrade("embedding")
		p.metrics.Degraded("embedding")
		zlog.Warn("query embedding failed, continuing without context",
			zap.String("session_id", st.SessionID),
			zap.Error(err))
		return st, nil
	}
	st.QueryVec = vec
	return st, nil
}

// Node 3: RetrieveContext - 向量检索并拼接上下文
func (p *ChatPipeline) retrieveContextNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	st.Stage = news.StageRetrievingContext
	if len(st.QueryVec) == 0 {
		return st, nil
	}

	t0 := time.Now()
	results, err := p.retriever.SearchVector(ctx, st.QueryVec, p.opts.TopK)
	st.SearchMs = time.Since(t0).Milliseconds()
	p.metrics.ObserveStage("search", time.Since(t0))

	if err != nil {
		st.degrade("search")
		p.metrics.Degraded("search")
		zlog.Warn("vector search failed, continuing without context",
			zap.String("session_id", st.SessionID),
			zap.Error(err))
		return st, nil
	}

	st.Context = joinContext(results)
	for _, r := range results {
		st.Sources = append(st.Sources, r.Metadata)
	}

	zlog.Debug("chat context retrieved",
		zap.String("session_id", st.SessionID),
		zap.Int("hits", len(results)))
	return st, nil
}

// Node 4: LoadHistory - 读取会话历史，失败视为空历史
func (p *ChatPipeline) loadHistoryNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	st.Stage = news.StageLoadingHistory

	hctx, cancel := withTimeout(ctx, p.opts.HistoryTimeout)
	defer cancel()

	t0 := time.Now()
	turns, err := p.sessions.Get(hctx, st.SessionID)
	st.HistoryMs = time.Since(t0).Milliseconds()
	p.metrics.ObserveStage("history", time.Since(t0))

	if err != nil {
		st.degrade("history")
		p.metrics.Degraded("history")
		zlog.Warn("load session history failed, using empty history",
			zap.String("session_id", st.SessionID),
			zap.Error(err))
		return st, nil
	}
	if turns != nil {
		st.History = turns
	}
	return st, nil
}

// Node 5: GenerateAnswer - 调用模型，失败即请求失败
func (p *ChatPipeline) generateAnswerNode(ctx context.Context, st *chatState, _ ...any) (*chatState, error) {
	if st == nil || st.Err != nil {
		return st, nil
	}
	st.Stage = news.StageGeneratingAnswer

	msgs := p.buildMessages(st)

	gctx, cancel := withTimeout(ctx, p.opts.GenerateTimeout)
	defer cancel()

	t0 := time.Now()
	out, err := p.chatModel.Generate(gctx, msgs)
	st.LLMMs = time.Since(t0).Milliseconds()
	p.metrics.ObserveStage("generate", time.Since(t0))

	if err != nil {
		zlog.Error("chat model generate failed",
			zap.String("session_id", st.SessionID),
			zap.Error(err))
		st.fail(xerr.Wrap(xerr.ErrGeneration, err))
		return st, nil
	}
	if out == nil {
		st.fail(xerr.Wrap(xerr.ErrGeneration, nil))
		return st, nil
	}
	st.Answer = out.Content
	return st, nil
}

// Node 6: PersistHistory - 写回会话历史（尽力而为），并构建最终结果
func (p *ChatPipeline) persistHistoryNode(ctx context.Context, st *chatState, _ ...any) (*ChatResult, error) {
	if st == nil {
		return &ChatResult{Stage: news.StageFailed, Err: xerr.ErrServerError, Sources: []news.Metadata{}}, nil
	}
	if st.Err != nil {
		p.recordOutcome(st)
		return p.buildFinalResult(st), nil
	}
	st.Stage = news.StagePersistingHistory

	updated := make([]news.Turn, 0, len(st.History)+2)
	updated = append(updated, st.History...)
	updated = append(updated,
		news.Turn{Role: news.RoleUser, Content: st.Message},
		news.Turn{Role: news.RoleAssistant, Content: st.Answer},
	)

	// 请求已被取消时仍尝试写入，回答已经生成
	pctx, cancel := withTimeout(context.WithoutCancel(ctx), p.opts.HistoryTimeout)
	defer cancel()

	t0 := time.Now()
	if err := p.sessions.Set(pctx, st.SessionID, updated, p.opts.SessionTTL); err != nil {
		st.degrade("persist")
		p.metrics.Degraded("persist")
		zlog.Warn("persist session history failed",
			zap.String("session_id", st.SessionID),
			zap.Error(err))
	}
	p.metrics.ObserveStage("persist", time.Since(t0))

	st.Stage = news.StageResponded
	p.recordOutcome(st)

	zlog.Info("chat request responded",
		zap.String("session_id", st.SessionID),
		zap.Int("sources", len(st.Sources)),
		zap.Strings("degraded", st.Degraded),
		zap.Int64("total_ms", time.Since(st.Start).Milliseconds()))

	return p.buildFinalResult(st), nil
}

func (p *ChatPipeline) buildMessages(st *chatState) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(st.History)+2)
	if prompt := strings.TrimSpace(p.opts.SystemPrompt); prompt != "" {
		msgs = append(msgs, schema.SystemMessage(prompt))
	}
	for _, t := range st.History {
		switch t.Role {
		case news.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(BuildUserPrompt(st.Context, st.Message)))
	return msgs
}

func (p *ChatPipeline) recordOutcome(st *chatState) {
	switch {
	case st.Err == nil:
		p.metrics.ChatOutcome("responded")
	case st.Err == xerr.ErrClientInput:
		p.metrics.ChatOutcome("client_error")
	default:
		p.metrics.ChatOutcome("generation_failed")
	}
}
