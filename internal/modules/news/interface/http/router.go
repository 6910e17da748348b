package http

import "github.com/gin-gonic/gin"

// RegisterRoutes 挂载 /api 下的全部路由
func RegisterRoutes(r gin.IRouter, chatH *ChatHandler, adminH *AdminHandler) {
	api := r.Group("/api")
	api.POST("/session", chatH.CreateSession)
	api.DELETE("/session/:sessionId", chatH.ClearSession)
	api.POST("/chat", chatH.Chat)
	api.GET("/history/:sessionId", chatH.History)

	api.GET("/health", adminH.Health)
	admin := api.Group("/admin")
	admin.POST("/ingest", adminH.Ingest)
	admin.DELETE("/index", adminH.DropIndex)
}
