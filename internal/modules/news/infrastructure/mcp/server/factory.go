package server

import (
	"net/http"
	"strings"

	"NewsPulse/internal/modules/news/application/service"
	mcpHandlers "NewsPulse/internal/modules/news/infrastructure/mcp/server/handlers"

	"github.com/mark3labs/mcp-go/server"
)

// NewsServerConfig MCP 服务配置
type NewsServerConfig struct {
	Name    string
	Version string
	Path    string
}

// NewsServerDependencies MCP 服务依赖
type NewsServerDependencies struct {
	RetrieveSvc service.RetrieveService
	ChatSvc     service.ChatService
}

// NewNewsMCPServer 创建并注册新闻工具
func NewNewsMCPServer(conf NewsServerConfig, deps NewsServerDependencies) *server.MCPServer {
	s := server.NewMCPServer(
		conf.Name,
		conf.Version,
		server.WithToolCapabilities(true),
	)

	if deps.RetrieveSvc != nil && deps.ChatSvc != nil {
		newsHandler := mcpHandlers.NewNewsToolHandler(deps.RetrieveSvc, deps.ChatSvc)
		newsHandler.RegisterTools(s)
	}
	return s
}

// NewHTTPHandler Streamable HTTP 传输，无状态模式
func NewHTTPHandler(conf NewsServerConfig, s *server.MCPServer) http.Handler {
	path := strings.TrimSpace(conf.Path)
	if path == "" {
		path = "/mcp"
	}
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	)
}
