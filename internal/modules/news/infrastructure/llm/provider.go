package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"NewsPulse/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}

	cc := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cc.Provider))
	modelName := strings.TrimSpace(cc.Model)

	timeout := 2 * time.Minute
	if cc.TimeoutSeconds > 0 {
		timeout = time.Duration(cc.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, fmt.Errorf("chat model provider not configured")

	case "mock":
		if modelName == "" {
			modelName = "mock-extractive"
		}
		return NewMockChatModel(), ChatModelMeta{Provider: "mock", Model: modelName}, nil

	case "openai":
		apiKey := firstNonEmpty(cc.APIKey, os.Getenv("OPENAI_API_KEY"))
		modelName = firstNonEmpty(modelName, os.Getenv("OPENAI_MODEL"))
		baseURL := firstNonEmpty(cc.BaseURL, os.Getenv("OPENAI_BASE_URL"))
		if apiKey == "" || modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
		}

		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:     apiKey,
			Model:      modelName,
			BaseURL:    baseURL,
			ByAzure:    cc.ByAzure,
			APIVersion: strings.TrimSpace(cc.AzureAPIVersion),
			Timeout:    timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil

	case "ark":
		apiKey := firstNonEmpty(cc.APIKey, os.Getenv("ARK_API_KEY"))
		accessKey := firstNonEmpty(cc.AccessKey, os.Getenv("ARK_ACCESS_KEY"))
		secretKey := firstNonEmpty(cc.SecretKey, os.Getenv("ARK_SECRET_KEY"))
		modelName = firstNonEmpty(modelName, os.Getenv("ARK_MODEL_ID"))
		baseURL := firstNonEmpty(cc.BaseURL, os.Getenv("ARK_BASE_URL"))
		region := firstNonEmpty(cc.Region, os.Getenv("ARK_REGION"))

		if apiKey == "" && (accessKey == "" || secretKey == "") {
			return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
		}
		if modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing model")
		}

		retryTimes := 2
		if cc.RetryTimes > 0 {
			retryTimes = cc.RetryTimes
		}

		cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:     apiKey,
			AccessKey:  accessKey,
			SecretKey:  secretKey,
			Model:      modelName,
			BaseURL:    baseURL,
			Region:     region,
			Timeout:    &timeout,
			RetryTimes: &retryTimes,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil

	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
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
