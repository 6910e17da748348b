package respond

import "NewsPulse/internal/modules/news/domain/news"

type CreateSessionRespond struct {
	SessionID string `json:"sessionId"`
}

// ChatRespond 问答结果，sources 与上下文顺序一致
type ChatRespond struct {
	Answer  string          `json:"answer"`
	Sources []news.Metadata `json:"sources"`
}

type HistoryRespond struct {
	History []news.Turn `json:"history"`
}

// MessageRespond 只带提示信息的响应
type MessageRespond struct {
	Message string `json:"message"`
}

type SearchRespond struct {
	Results []news.SearchResult `json:"results"`
}
