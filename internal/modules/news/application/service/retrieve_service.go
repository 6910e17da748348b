package service

import (
	"context"
	"strings"

	"NewsPulse/internal/modules/news/application/dto/request"
	"NewsPulse/internal/modules/news/application/dto/respond"
	"NewsPulse/internal/modules/news/infrastructure/pipeline"
	"NewsPulse/pkg/xerr"
)

const maxSearchK = 20

// RetrieveService 只做检索不做生成（MCP search_news 工具使用）
type RetrieveService interface {
	Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error)
}

type retrieveServiceImpl struct {
	retriever   *pipeline.Retriever
	defaultTopK int
}

func NewRetrieveService(r *pipeline.Retriever, defaultTopK int) RetrieveService {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &retrieveServiceImpl{retriever: r, defaultTopK: defaultTopK}
}

func (s *retrieveServiceImpl) Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, xerr.New(xerr.BadRequest, "query is required")
	}
	k := req.K
	if k <= 0 {
		k = s.defaultTopK
	}
	if k > maxSearchK {
		k = maxSearchK
	}

	results, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, xerr.Wrap(errIndexUnavailable, err)
	}
	return &respond.SearchRespond{Results: results}, nil
}
