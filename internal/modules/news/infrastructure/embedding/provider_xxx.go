package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"NewsPulse/internal/config"

	arkEmbed "github.com/cloudwego/eino-ext/components/embedding/ark"
	dashscopeEmbed "github.com/cloudwego/eino-ext/components/embedding/dashscope"
	openaIEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

type EmbedderMeta struct {
	Provider string
	Model    string
	Dim      int
}

// NewEmbedderFromConfig 按 aiConfig.embedding.provider 创建 Embedder，apiKey/model 缺省时读环境变量
func NewEmbedderFromConfig(ctx context.Context, conf *config.Config) (embedding.Embedder, EmbedderMeta, error) {
	if conf == nil {
		return nil, EmbedderMeta{}, fmt.Errorf("nil config")
	}

	ec := conf.AIConfig.Embedding
	dim := ec.Dimensions
	provider := strings.ToLower(strings.TrimSpace(ec.Provider))
	model := strings.TrimSpace(ec.Model)

	timeout := 30 * time.Second
	if ec.TimeoutSeconds > 0 {
		timeout = time.Duration(ec.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "", "mock":
		if model == "" {
			model = "mock-hash"
		}
		return NewMockEmbedder(dim), EmbedderMeta{Provider: "mock", Model: model, Dim: dim}, nil
	case "openai":
		apiKey := firstNonEmpty(ec.APIKey, os.Getenv("OPENAI_API_KEY"))
		model = firstNonEmpty(model, os.Getenv("OPENAI_EMBED_MODEL"))
		baseURL := firstNonEmpty(ec.BaseURL, os.Getenv("OPENAI_BASE_URL"))
		if apiKey == "" || model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("openai embedding missing apiKey/model")
		}

		localDim := dim
		em, err := openaIEmbed.NewEmbedder(ctx, &openaIEmbed.EmbeddingConfig{
			APIKey:     apiKey,
			Model:      model,
			BaseURL:    baseURL,
			Timeout:    timeout,
			Dimensions: &localDim,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return em, EmbedderMeta{Provider: "openai", Model: model, Dim: dim}, nil
	case "ark":
		apiKey := firstNonEmpty(ec.APIKey, os.Getenv("ARK_API_KEY"))
		model = firstNonEmpty(model, os.Getenv("ARK_EMBED_MODEL"))
		baseURL := firstNonEmpty(ec.BaseURL, os.Getenv("ARK_BASE_URL"))
		if apiKey == "" || model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("ark embedding missing apiKey/model")
		}

		em, err := arkEmbed.NewEmbedder(ctx, &arkEmbed.EmbeddingConfig{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: baseURL,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return em, EmbedderMeta{Provider: "ark", Model: model, Dim: dim}, nil
	case "dashscope":
		apiKey := firstNonEmpty(ec.APIKey, os.Getenv("DASHSCOPE_API_KEY"))
		model = firstNonEmpty(model, os.Getenv("DASHSCOPE_EMBED_MODEL"))
		if apiKey == "" || model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("dashscope embedding missing apiKey/model")
		}

		localDim := dim
		de, err := dashscopeEmbed.NewEmbedder(ctx, &dashscopeEmbed.EmbeddingConfig{
			Model:      model,
			APIKey:     apiKey,
			Dimensions: &localDim,
		})
		if err != nil {
			return nil, EmbedderMeta{}, err
		}
		return de, EmbedderMeta{Provider: "dashscope", Model: model, Dim: dim}, nil
	default:
		return nil, EmbedderMeta{}, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ embedding.Embedder = (*MockEmbedder)(nil)
