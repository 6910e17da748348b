package request

import "NewsPulse/internal/modules/news/domain/news"

// ArticleRequest 单篇待导入新闻
type ArticleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
	PubDate string `json:"pubDate"`
	Source  string `json:"source"`
}

func (a ArticleRequest) ToArticle() news.Article {
	return news.Article{
		Title:   a.Title,
		Content: a.Content,
		Link:    a.Link,
		PubDate: a.PubDate,
		Source:  a.Source,
	}
}

// ToArticles 批量转换
func ToArticles(in []ArticleRequest) []news.Article {
	out := make([]news.Article, 0, len(in))
	for _, a := range in {
		out = append(out, a.ToArticle())
	}
	return out
}
