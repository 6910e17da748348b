package request

// ChatRequest 问答请求，两个字段均为必填，缺失时由 service 返回 400
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// SearchRequest 检索请求（MCP search_news 使用）
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}
