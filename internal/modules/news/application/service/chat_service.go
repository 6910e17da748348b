package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/pipeline"
	"NewsPulse/pkg/util"
	"NewsPulse/pkg/xerr"
	"NewsPulse/pkg/zlog"

	"go.uber.org/zap"
)

const sessionClearedMessage = "Session cleared"

// ChatService 会话与问答服务接口
type ChatService interface {
	// CreateSession 分配新的会话ID，不写入任何存储
	CreateSession(ctx context.Context) (*respond.CreateSessionRespond, error)

	// Chat 执行一次问答
	//
	// 返回：
	//   - 成功：answer + sources
	//   - 缺少 sessionId/message：xerr.ErrClientInput（400）
	//   - 模型调用失败：xerr.ErrGeneration（500）
	Chat(ctx context.Context, req request.ChatRequest) (*respond.ChatRespond, error)

	// History 读取会话历史；不存在、过期或存储不可用时返回空列表
	History(ctx context.Context, sessionID string) (*respond.HistoryRespond, error)

	// ClearSession 删除会话历史，幂等
	ClearSession(ctx context.Context, sessionID string) (*respond.MessageRespond, error)
}

type chatServiceImpl struct {
	pipeline       *pipeline.ChatPipeline
	sessions       repository.SessionStore
	historyTimeout time.Duration
}

// NewChatService 创建问答服务
func NewChatService(p *pipeline.ChatPipeline, sessions repository.SessionStore, historyTimeout time.Duration) ChatService {
	return &chatServiceImpl{pipeline: p, sessions: sessions, historyTimeout: historyTimeout}
}

func (s *chatServiceImpl) CreateSession(_ context.Context) (*respond.CreateSessionRespond, error) {
	return &respond.CreateSessionRespond{SessionID: util.GenerateUUID()}, nil
}

func (s *chatServiceImpl) Chat(ctx context.Context, req request.ChatRequest) (*respond.ChatRespond, error) {
	if s.pipeline == nil {
		return nil, xerr.Wrap(xerr.ErrServerError, fmt.Errorf("chat pipeline is nil"))
	}

	result, err := s.pipeline.Execute(ctx, &pipeline.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		zlog.Error("chat pipeline execute failed", zap.Error(err))
		return nil, xerr.Wrap(xerr.ErrServerError, err)
	}
	if result.Err != nil {
		return nil, result.Err
	}

	return &respond.ChatRespond{
		Answer:  result.Answer,
		Sources: result.Sources,
	}, nil
}

func (s *chatServiceImpl) History(ctx context.Context, sessionID string) (*respond.HistoryRespond, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || s.sessions == nil {
		return &respond.HistoryRespond{History: []news.Turn{}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	turns, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		zlog.Warn("load session history failed", zap.String("session_id", sessionID), zap.Error(err))
		turns = nil
	}
	if turns == nil {
		turns = []news.Turn{}
	}
	return &respond.HistoryRespond{History: turns}, nil
}

func (s *chatServiceImpl) ClearSession(ctx context.Context, sessionID string) (*respond.MessageRespond, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" && s.sessions != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout())
		defer cancel()
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			zlog.Warn("delete session failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return &respond.MessageRespond{Message: sessionClearedMessage}, nil
}

func (s *chatServiceImpl) timeout() time.Duration {
	if s.historyTimeout <= 0 {
		return 2 * time.Second
	}
	return s.historyTimeout
}
