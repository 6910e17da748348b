package handlers

import (
	"context"
	"fmt"
	"strings"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// NewsToolHandler 新闻检索与问答工具处理器
type NewsToolHandler struct {
	retrieveSvc service.RetrieveService
	chatSvc     service.ChatService
}

// NewNewsToolHandler 创建 NewsToolHandler
func NewNewsToolHandler(retrieveSvc service.RetrieveService, chatSvc service.ChatService) *NewsToolHandler {
	return &NewsToolHandler{retrieveSvc: retrieveSvc, chatSvc: chatSvc}
}

// RegisterTools 注册 search_news 与 ask_news
func (h *NewsToolHandler) RegisterTools(s *server.MCPServer) {
	search := mcp.NewTool("search_news",
		mcp.WithDescription("Semantic search over indexed news articles. Returns the closest passages with title, link, publish date and similarity score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query")),
		mcp.WithNumber("k", mcp.Description("Number of results (default 3, max 20)")),
	)
	s.AddTool(search, h.handleSearch)

	ask := mcp.NewTool("ask_news",
		mcp.WithDescription("Ask a question answered from recent news. Pass the returned sessionId back to keep conversation history."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Question to ask")),
		mcp.WithString("sessionId", mcp.Description("Existing session id; a new one is created when empty")),
	)
	s.AddTool(ask, h.handleAsk)
}

func (h *NewsToolHandler) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format, expected map"), nil
	}
	query, _ := args["query"].(string)
	k := 0
	if v, ok := args["k"].(float64); ok {
		k = int(v)
	}

	out, err := h.retrieveSvc.Search(ctx, request.SearchRequest{Query: query, K: k})
	if err != nil {
		zlog.Warn("search_news failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(toolErrorText(err)), nil
	}
	return mcp.NewToolResultText(formatResults(out.Results)), nil
}

func (h *NewsToolHandler) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format, expected map"), nil
	}
	message, _ := args["message"].(string)
	sessionID, _ := args["sessionId"].(string)

	if strings.TrimSpace(sessionID) == "" {
		created, err := h.chatSvc.CreateSession(ctx)
		if err != nil {
			return mcp.NewToolResultError(toolErrorText(err)), nil
		}
		sessionID = created.SessionID
	}

	out, err := h.chatSvc.Chat(ctx, request.ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		zlog.Warn("ask_news failed", zap.String("session_id", sessionID), zap.Error(err))
		return mcp.NewToolResultError(toolErrorText(err)), nil
	}

	var sb strings.Builder
	sb.WriteString(out.Answer)
	sb.WriteString("\n\nsessionId: ")
	sb.WriteString(sessionID)
	if len(out.Sources) > 0 {
		sb.WriteString("\nSources:\n")
		for i, src := range out.Sources {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatSource(src)))
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}

func formatResults(results []news.SearchResult) string {
	if len(results) == 0 {
		return "No matching news found."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results:\n", len(results)))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. [%.3f] %s\n   %s\n", i+1, r.Score, formatSource(r.Metadata), r.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSource(m news.Metadata) string {
	parts := []string{m.Title}
	if m.Source != "" {
		parts = append(parts, m.Source)
	}
	if m.PublishedAt != "" {
		parts = append(parts, m.PublishedAt)
	}
	if m.Link != "" {
		parts = append(parts, m.Link)
	}
	return strings.Join(parts, " | ")
}

// toolErrorText 只暴露 CodeError 的 Message
func toolErrorText(err error) string {
	if ce, ok := xerr.As(err); ok {
		return ce.Message
	}
	return xerr.ErrServerError.Message
}
