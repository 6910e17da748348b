package http

import (
	"net/http"

	"NewsPulse/internal/config"
	newsHandler "NewsPulse/internal/modules/news/interface/http"
	"NewsPulse/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies 构建 HTTP 引擎所需的处理器；MCP 与 Metrics 可为 nil
type Dependencies struct {
	ChatHandler  *newsHandler.ChatHandler
	AdminHandler *newsHandler.AdminHandler
	MCPHandler   http.Handler
	Metrics      http.Handler
}

// NewEngine 创建 gin 引擎并注册全部路由
func NewEngine(conf *config.Config, deps Dependencies) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Mcp-Session-Id"}
	ge.Use(cors.New(corsConfig))
	ge.Use(ssl.TlsHandler(ssl.Options{
		Host:        conf.MainConfig.Host,
		Port:        conf.MainConfig.Port,
		SSLRedirect: conf.MainConfig.SSLRedirect,
	}))

	newsHandler.RegisterRoutes(ge, deps.ChatHandler, deps.AdminHandler)

	if deps.Metrics != nil {
		ge.GET(conf.MetricsConfig.Path, gin.WrapH(deps.Metrics))
	}
	if deps.MCPHandler != nil {
		ge.Any(conf.MCPConfig.Path, gin.WrapH(deps.MCPHandler))
	}

	return ge
}
