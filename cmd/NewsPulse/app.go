package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	httpServer "NewsPulse/api/http"
	"NewsPulse/internal/config"
	"NewsPulse/internal/initial"
	"NewsPulse/internal/modules/news/application/service"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/chunking"
	"NewsPulse/internal/modules/news/infrastructure/embedding"
	"NewsPulse/internal/modules/news/infrastructure/llm"
	mcpServer "NewsPulse/internal/modules/news/infrastructure/mcp/server"
	"NewsPulse/internal/modules/news/infrastructure/metrics"
	"NewsPulse/internal/modules/news/infrastructure/mq"
	"NewsPulse/internal/modules/news/infrastructure/mq/kafka"
	"NewsPulse/internal/modules/news/infrastructure/pipeline"
	"NewsPulse/internal/modules/news/infrastructure/ratelimit"
	"NewsPulse/internal/modules/news/infrastructure/vectordb"
	"NewsPulse/internal/modules/news/interface/event"
	newsHandler "NewsPulse/internal/modules/news/interface/http"
	"NewsPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App 进程内全部组件，按依赖顺序构建，Close 逆序释放
type App struct {
	conf *config.Config

	Index     *vectordb.Index
	Sessions  repository.SessionStore
	Metrics   *metrics.Metrics
	ChatSvc   service.ChatService
	IngestSvc service.IngestService
	Engine    *gin.Engine

	redis     *goredis.Client
	publisher mq.Publisher
	consumer  mq.Consumer

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// NewApp 构建组件；Redis、Kafka 不可用时降级运行，索引与模型创建失败则返回错误
func NewApp(ctx context.Context, conf *config.Config) (*App, error) {
	app := &App{conf: conf}
	if conf.MetricsConfig.Enabled {
		app.Metrics = metrics.New()
	}

	idx, err := initial.NewVectorIndex(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	app.Index = idx

	app.Sessions, app.redis = initial.NewSessionStore(ctx, conf)

	embedder, embMeta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	chatModel, chatMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("chat model: %w", err)
	}
	zlog.Info("ai providers ready",
		zap.String("embedding_provider", embMeta.Provider),
		zap.String("embedding_model", embMeta.Model),
		zap.Int("embedding_dim", embMeta.Dim),
		zap.String("chat_provider", chatMeta.Provider),
		zap.String("chat_model", chatMeta.Model))

	to := conf.TimeoutConfig
	retriever, err := pipeline.NewRetriever(embedder, idx, ms(to.EmbedMs), ms(to.SearchMs))
	if err != nil {
		app.Close()
		return nil, err
	}

	chatPipeline, err := pipeline.NewChatPipeline(retriever, app.Sessions, chatModel, app.Metrics, pipeline.ChatOptions{
		TopK:            conf.VectorConfig.TopK,
		SessionTTL:      time.Duration(conf.SessionConfig.TTLSeconds) * time.Second,
		SystemPrompt:    conf.AIConfig.ChatModel.SystemPrompt,
		HistoryTimeout:  ms(to.HistoryMs),
		GenerateTimeout: ms(to.GenerateMs),
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("chat pipeline: %w", err)
	}

	ic := conf.IngestConfig
	ingestPipeline, err := pipeline.NewIngestPipeline(
		retriever,
		idx,
		chunking.NewChunker(ic.ChunkSize, ic.ChunkOverlap),
		ratelimit.NewLimiter(ms(ic.MinIntervalMs)),
		app.Metrics,
		ic.MaxArticles,
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("ingest pipeline: %w", err)
	}

	app.ChatSvc = service.NewChatService(chatPipeline, app.Sessions, ms(to.HistoryMs))
	app.IngestSvc = service.NewIngestService(ingestPipeline, idx)
	retrieveSvc := service.NewRetrieveService(retriever, conf.VectorConfig.TopK)

	var asyncSvc service.AsyncIngestService
	if conf.KafkaConfig.Enabled {
		asyncSvc = app.setupKafka()
	}

	deps := httpServer.Dependencies{
		ChatHandler:  newsHandler.NewChatHandler(app.ChatSvc),
		AdminHandler: newsHandler.NewAdminHandler(app.IngestSvc, asyncSvc),
	}
	if app.Metrics != nil {
		deps.Metrics = app.Metrics.Handler()
	}
	if conf.MCPConfig.Enabled {
		mc := mcpServer.NewsServerConfig{Name: conf.MCPConfig.Name, Version: conf.MCPConfig.Version, Path: conf.MCPConfig.Path}
		s := mcpServer.NewNewsMCPServer(mc, mcpServer.NewsServerDependencies{RetrieveSvc: retrieveSvc, ChatSvc: app.ChatSvc})
		deps.MCPHandler = mcpServer.NewHTTPHandler(mc, s)
	}
	app.Engine = httpServer.NewEngine(conf, deps)

	return app, nil
}

// setupKafka 失败只记录日志，异步导入随之关闭
func (a *App) setupKafka() service.AsyncIngestService {
	kc := a.conf.KafkaConfig
	topic := strings.TrimSpace(kc.ArticleTopic)

	if err := kafka.EnsureTopic(kafka.TopicAdminConfig{Brokers: kc.Brokers, ClientID: kc.ClientID}, topic, 1, 1); err != nil {
		zlog.Warn("ensure kafka topic failed", zap.String("topic", topic), zap.Error(err))
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    kc.Brokers,
		GroupID:    kc.ConsumerGroupID,
		Topics:     []string{topic},
		ClientID:   kc.ClientID,
		FromOldest: true,
	})
	if err != nil {
		zlog.Warn("kafka consumer disabled", zap.Error(err))
	} else {
		a.consumer = consumer
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: kc.Brokers, ClientID: kc.ClientID})
	if err != nil {
		zlog.Warn("kafka publisher disabled", zap.Error(err))
		return nil
	}
	a.publisher = publisher
	return service.NewAsyncIngestService(publisher, topic)
}

// StartBackground 启动种子导入与 Kafka 消费，ctx 取消时退出
func (a *App) StartBackground(ctx context.Context) {
	if seed := strings.TrimSpace(a.conf.IngestConfig.SeedFile); seed != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if _, err := a.IngestSvc.IngestFile(ctx, seed); err != nil {
				zlog.Warn("seed ingest failed", zap.String("path", seed), zap.Error(err))
			}
		}()
	}

	if a.consumer != nil {
		handler := event.NewArticleEventHandler(a.IngestSvc)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			zlog.Info("kafka consumer started", zap.String("topic", a.conf.KafkaConfig.ArticleTopic))
			if err := a.consumer.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}
}

// Wait 等待后台任务退出
func (a *App) Wait() { a.wg.Wait() }

// Shutdown 先等后台任务退出再释放索引与 Kafka 客户端，ctx 到期后直接释放
func (a *App) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		zlog.Warn("background tasks did not stop before shutdown timeout")
	}
	a.Close()
}

// Close 逆序释放资源，可重复调用
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.consumer != nil {
			if err := a.consumer.Close(); err != nil {
				zlog.Warn("close kafka consumer failed", zap.Error(err))
			}
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				zlog.Warn("close kafka publisher failed", zap.Error(err))
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				zlog.Warn("close redis failed", zap.Error(err))
			}
		}
		if a.Index != nil {
			if err := a.Index.Close(); err != nil {
				zlog.Warn("close vector index failed", zap.Error(err))
			}
		}
	})
}
