package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/metrics"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
)

// ChatRequest Chat Pipeline 输入请求
type ChatRequest struct {
	SessionID string // 会话ID（必填）
	Message   string // 用户问题（必填）
}

// ChatResult Chat Pipeline 输出结果
type ChatResult struct {
	SessionID string
	Answer    string
	Sources   []news.Metadata // 与检索排名顺序一致
	Stage     news.ChatStage  // RESPONDED 或 FAILED
	Degraded  []string        // 被降级的阶段（embedding/search/history/persist）
	Timing    ChatTiming
	Err       error // ClientInput 或 Generation 错误
}

// ChatTiming 各阶段耗时（毫秒）
type ChatTiming struct {
	EmbeddingMs int64 `json:"embedding_ms"`
	SearchMs    int64 `json:"search_ms"`
	HistoryMs   int64 `json:"history_ms"`
	LLMMs       int64 `json:"llm_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// ChatOptions 可调参数
type ChatOptions struct {
	TopK            int
	SessionTTL      time.Duration
	SystemPrompt    string
	HistoryTimeout  time.Duration
	GenerateTimeout time.Duration
}

// ChatPipeline 新闻问答 Pipeline（基于 Eino Graph），每个节点对应一个请求阶段
type ChatPipeline struct {
	retriever *Retriever
	sessions  repository.SessionStore
	chatModel model.BaseChatModel
	metrics   *metrics.Metrics
	opts      ChatOptions
	r         compose.Runnable[*ChatRequest, *ChatResult]
}

// NewChatPipeline 创建 Chat Pipeline；metrics 可为 nil
func NewChatPipeline(
	retriever *Retriever,
	sessions repository.SessionStore,
	chatModel model.BaseChatModel,
	m *metrics.Metrics,
	opts ChatOptions,
) (*ChatPipeline, error) {
	if retriever == nil || sessions == nil || chatModel == nil {
		return nil, fmt.Errorf("required dependencies are nil")
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}

	p := &ChatPipeline{
		retriever: retriever,
		sessions:  sessions,
		chatModel: chatModel,
		metrics:   m,
		opts:      opts,
	}

	// 构建Eino Graph
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r

	return p, nil
}

// Execute 执行一次问答。返回的 error 仅表示 Graph 自身异常，业务错误在 ChatResult.Err 中
func (p *ChatPipeline) Execute(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if p.r == nil {
		return nil, fmt.Errorf("pipeline runnable is nil")
	}
	return p.r.Invoke(ctx, req)
}

// buildGraph 构建Eino Graph（6个节点）
func (p *ChatPipeline) buildGraph(ctx context.Context) (compose.Runnable[*ChatRequest, *ChatResult], error) {
	const (
		Receive         = "Receive"
		EmbedQuery      = "EmbedQuery"
		RetrieveContext = "RetrieveContext"
		LoadHistory     = "LoadHistory"
		GenerateAnswer  = "GenerateAnswer"
		PersistHistory  = "PersistHistory"
	)

	g := compose.NewGraph[*ChatRequest, *ChatResult]()

	nodes := []struct {
		name string
		add  func() error
	}{
		{Receive, func() error {
			return g.AddLambdaNode(Receive, compose.InvokableLambdaWithOption(p.receiveNode), compose.WithNodeName(Receive))
		}},
		{EmbedQuery, func() error {
			return g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
		}},
		{RetrieveContext, func() error {
			return g.AddLambdaNode(RetrieveContext, compose.InvokableLambdaWithOption(p.retrieveContextNode), compose.WithNodeName(RetrieveContext))
		}},
		{LoadHistory, func() error {
			return g.AddLambdaNode(LoadHistory, compose.InvokableLambdaWithOption(p.loadHistoryNode), compose.WithNodeName(LoadHistory))
		}},
		{GenerateAnswer, func() error {
			return g.AddLambdaNode(GenerateAnswer, compose.InvokableLambdaWithOption(p.generateAnswerNode), compose.WithNodeName(GenerateAnswer))
		}},
		{PersistHistory, func() error {
			return g.AddLambdaNode(PersistHistory, compose.InvokableLambdaWithOption(p.persistHistoryNode), compose.WithNodeName(PersistHistory))
		}},
	}
	for _, n := range nodes {
		if err := n.add(); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.name, err)
		}
	}

	edges := [][2]string{
		{compose.START, Receive},
		{Receive, EmbedQuery},
		{EmbedQuery, RetrieveContext},
		{RetrieveContext, LoadHistory},
		{LoadHistory, GenerateAnswer},
		{GenerateAnswer, PersistHistory},
		{PersistHistory, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", e[0], e[1], err)
		}
	}

	return g.Compile(ctx, compose.WithGraphName("ChatPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *ChatPipeline) buildFinalResult(st *chatState) *ChatResult {
	sources := st.Sources
	if sources == nil {
		sources = []news.Metadata{}
	}
	return &ChatResult{
		SessionID: st.SessionID,
		Answer:    st.Answer,
		Sources:   sources,
		Stage:     st.Stage,
		Degraded:  st.Degraded,
		Timing: ChatTiming{
			EmbeddingMs: st.EmbeddingMs,
			SearchMs:    st.SearchMs,
			HistoryMs:   st.HistoryMs,
			LLMMs:       st.LLMMs,
			TotalMs:     time.Since(st.Start).Milliseconds(),
		},
		Err: st.Err,
	}
}

// BuildUserPrompt 拼接最终用户输入
func BuildUserPrompt(contextBlock, message string) string {
	return "Context:\n" + contextBlock + "\n\nQuestion: " + message
}

// joinContext 按排名顺序以空行连接检索到的正文
func joinContext(results []news.SearchResult) string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return strings.Join(texts, "\n\n")
}
