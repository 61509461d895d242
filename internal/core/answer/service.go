package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/study-rag/internal/core/document"
)

// Retriever は関連フラグメント検索のインターフェース
type Retriever interface {
	FindRelevant(ctx context.Context, question, subjectID string, limit int) ([]*document.ScoredFragment, error)
}

// Service は検索と回答生成を組み合わせた質問応答を提供する
type Service struct {
	retriever   Retriever
	synthesizer *Synthesizer
	logger      *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithAskLogger は Service にロガーを設定する
func WithAskLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(retriever Retriever, synthesizer *Synthesizer, opts ...ServiceOption) *Service {
	svc := &Service{
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Ask は科目内の資料を検索し、その内容に基づいて回答を生成する
func (s *Service) Ask(ctx context.Context, question, subjectID string, limit int) (*Answer, error) {
	fragments, err := s.retriever.FindRelevant(ctx, question, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	s.logger.Info("retrieval completed",
		"subjectID", subjectID,
		"fragments", len(fragments),
	)

	result, err := s.synthesizer.Synthesize(ctx, question, fragments)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ask completed successfully",
		"answerLength", len(result.Text),
		"citations", len(result.Citations),
	)
	return result, nil
}
