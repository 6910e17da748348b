package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath 本地配置文件路径，可通过 -config 覆盖
const DefaultPath = "configs/config_local.toml"

type MainConfig struct {
	AppName     string `toml:"appName"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	SSLRedirect bool   `toml:"sslRedirect"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	LogPath    string `toml:"logPath"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type SessionConfig struct {
	TTLSeconds int `toml:"ttlSeconds"`
}

type SQLiteConfig struct {
	Dir string `toml:"dir"`
}

type MilvusConfig struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DBName   string `toml:"dbName"`
	// ConnectTimeoutMs 首次连接超时，连接在第一次访问索引时建立
	ConnectTimeoutMs int `toml:"connectTimeoutMs"`
}

// VectorConfig 向量索引配置，provider 为 sqlite 或 milvus
type VectorConfig struct {
	Provider string       `toml:"provider"`
	Corpus   string       `toml:"corpus"`
	TopK     int          `toml:"topK"`
	SQLite   SQLiteConfig `toml:"sqlite"`
	Milvus   MilvusConfig `toml:"milvus"`
}

type AIEmbeddingConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"apiKey"`
	BaseURL        string `toml:"baseURL"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
	SystemPrompt    string `toml:"systemPrompt"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// IngestConfig 批量导入配置
type IngestConfig struct {
	SeedFile      string `toml:"seedFile"`
	MaxArticles   int    `toml:"maxArticles"`
	MinIntervalMs int    `toml:"minIntervalMs"`
	ChunkSize     int    `toml:"chunkSize"`
	ChunkOverlap  int    `toml:"chunkOverlap"`
}

type KafkaConfig struct {
	Enabled         bool     `toml:"enabled"`
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	ArticleTopic    string   `toml:"articleTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
}

// MCPConfig MCP 配置
type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Path    string `toml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// TimeoutConfig 外部调用超时（毫秒）
type TimeoutConfig struct {
	EmbedMs    int `toml:"embedMs"`
	SearchMs   int `toml:"searchMs"`
	HistoryMs  int `toml:"historyMs"`
	GenerateMs int `toml:"generateMs"`
}

type Config struct {
	MainConfig    `toml:"mainConfig"`
	LogConfig     `toml:"logConfig"`
	RedisConfig   `toml:"redisConfig"`
	SessionConfig `toml:"sessionConfig"`
	VectorConfig  `toml:"vectorConfig"`
	AIConfig      `toml:"aiConfig"`
	IngestConfig  `toml:"ingestConfig"`
	KafkaConfig   `toml:"kafkaConfig"`
	MCPConfig     `toml:"mcpConfig"`
	MetricsConfig `toml:"metricsConfig"`
	TimeoutConfig `toml:"timeoutConfig"`
}

const DefaultSystemPrompt = "You are a helpful news assistant. Answer based ONLY on context. " +
	"Do NOT start your answer with \"Based on the context provided\" or similar phrases. " +
	"Just answer the question directly."

// Default 返回填充了默认值的配置
func Default() *Config {
	c := new(Config)
	c.Normalize()
	return c
}

// Load 读取 toml 配置文件；文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.Normalize()
	return c, nil
}

// applyEnv 环境变量覆盖部署相关字段
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("NEWSPULSE_REDIS_HOST")); v != "" {
		c.RedisConfig.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSPULSE_MILVUS_ADDRESS")); v != "" {
		c.VectorConfig.Milvus.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSPULSE_SEED_FILE")); v != "" {
		c.IngestConfig.SeedFile = v
	}
}

// Normalize 补齐缺省值
func (c *Config) Normalize() {
	if c.MainConfig.AppName == "" {
		c.MainConfig.AppName = "NewsPulse"
	}
	if c.MainConfig.Port <= 0 {
		c.MainConfig.Port = 8000
	}
	if c.RedisConfig.Host != "" && c.RedisConfig.Port <= 0 {
		c.RedisConfig.Port = 6379
	}
	if c.SessionConfig.TTLSeconds <= 0 {
		c.SessionConfig.TTLSeconds = 3600
	}

	c.VectorConfig.Provider = strings.ToLower(strings.TrimSpace(c.VectorConfig.Provider))
	if c.VectorConfig.Provider == "" {
		c.VectorConfig.Provider = "sqlite"
	}
	if strings.TrimSpace(c.VectorConfig.Corpus) == "" {
		c.VectorConfig.Corpus = "news_articles"
	}
	if c.VectorConfig.TopK <= 0 {
		c.VectorConfig.TopK = 3
	}
	if c.VectorConfig.SQLite.Dir == "" {
		c.VectorConfig.SQLite.Dir = "data"
	}
	if c.VectorConfig.Milvus.DBName == "" {
		c.VectorConfig.Milvus.DBName = "default"
	}
	if c.VectorConfig.Milvus.ConnectTimeoutMs <= 0 {
		c.VectorConfig.Milvus.ConnectTimeoutMs = 5000
	}

	if strings.TrimSpace(c.AIConfig.ChatModel.SystemPrompt) == "" {
		c.AIConfig.ChatModel.SystemPrompt = DefaultSystemPrompt
	}
	if c.AIConfig.Embedding.Dimensions <= 0 {
		c.AIConfig.Embedding.Dimensions = 768
	}

	if c.IngestConfig.MaxArticles <= 0 {
		c.IngestConfig.MaxArticles = 50
	}
	// 负数表示不限速
	if c.IngestConfig.MinIntervalMs == 0 {
		c.IngestConfig.MinIntervalMs = 200
	}
	if c.IngestConfig.ChunkOverlap < 0 {
		c.IngestConfig.ChunkOverlap = 0
	}

	if c.KafkaConfig.ConsumerGroupID == "" {
		c.KafkaConfig.ConsumerGroupID = "newspulse-ingest"
	}
	if c.KafkaConfig.ArticleTopic == "" {
		c.KafkaConfig.ArticleTopic = "news.articles"
	}

	if c.MCPConfig.Name == "" {
		c.MCPConfig.Name = "newspulse"
	}
	if c.MCPConfig.Version == "" {
		c.MCPConfig.Version = "1.0.0"
	}
	if c.MCPConfig.Path == "" {
		c.MCPConfig.Path = "/mcp"
	}
	if c.MetricsConfig.Path == "" {
		c.MetricsConfig.Path = "/metrics"
	}

	if c.TimeoutConfig.EmbedMs <= 0 {
		c.TimeoutConfig.EmbedMs = 10000
	}
	if c.TimeoutConfig.SearchMs <= 0 {
		c.TimeoutConfig.SearchMs = 5000
	}
	if c.TimeoutConfig.HistoryMs <= 0 {
		c.TimeoutConfig.HistoryMs = 2000
	}
	if c.TimeoutConfig.GenerateMs <= 0 {
		c.TimeoutConfig.GenerateMs = 60000
	}
}
