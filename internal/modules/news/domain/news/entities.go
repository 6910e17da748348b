package news

// Metadata 文档来源信息，随检索结果作为 sources 返回
type Metadata struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedAt string `json:"pubDate"`
	Source      string `json:"source"`
}

// Document 向量索引中的一条记录，写入后不可变
type Document struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata Metadata
}

// SearchResult 检索结果，Score = 1 - cosine distance，不做截断
type SearchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Role 会话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 一轮发言
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Article 待导入的新闻，已由上游解析完毕
type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
	PubDate string `json:"pubDate"`
	Source  string `json:"source"`
}

// Text 用于 embedding 的文本
func (a Article) Text() string {
	return a.Title + ". " + a.Content
}

// Metadata 转换为文档元数据
func (a Article) Metadata() Metadata {
	return Metadata{
		Title:       a.Title,
		Link:        a.Link,
		PublishedAt: a.PubDate,
		Source:      a.Source,
	}
}
