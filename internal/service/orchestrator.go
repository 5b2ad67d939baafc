package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/history"
	"github.com/liliang-cn/askpdf/internal/metrics"
)

// OrchestratorService runs one question through rewrite, retrieval and
// answer, and records the exchange in the session history
type OrchestratorService struct {
	rewriter  *Rewriter
	responder *Responder
	store     history.Store
	locks     *history.Locks
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewOrchestratorService wires the question pipeline. timeout bounds each
// LLM stage separately; zero disables it.
func NewOrchestratorService(
	rewriter *Rewriter,
	responder *Responder,
	store history.Store,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OrchestratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorService{
		rewriter:  rewriter,
		responder: responder,
		store:     store,
		locks:     history.NewLocks(),
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Ask answers question within sessionID. History is only extended when an
// answer was produced; any failure leaves it as it was.
func (s *OrchestratorService) Ask(ctx context.Context, sessionID, question string) (*domain.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidRequest)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	log := s.logger.With(zap.String("session_id", sessionID))

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	resp, err := s.ask(ctx, log, sessionID, question)
	if errors.Is(err, context.Canceled) {
		s.metrics.Question(metrics.OutcomeCanceled)
		log.Info("question canceled by caller", zap.Error(err))
		return nil, err
	}
	if err != nil {
		s.metrics.Question(metrics.OutcomeError)
		log.Warn("question failed", zap.Error(err))
		return nil, err
	}
	s.metrics.Question(metrics.OutcomeSuccess)
	return resp, nil
}

func (s *OrchestratorService) ask(ctx context.Context, log *zap.Logger, sessionID, question string) (*domain.ChatResponse, error) {
	turns, err := s.store.Turns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var standalone string
	err = s.stage(ctx, metrics.StageRewrite, func(ctx context.Context) error {
		var err error
		standalone, err = s.rewriter.Rewrite(ctx, turns, question)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite question: %w", err)
	}
	log.Debug("standalone question", zap.String("question", standalone))

	var answer *Answer
	err = s.stage(ctx, metrics.StageAnswer, func(ctx context.Context) error {
		var err error
		answer, err = s.responder.Respond(ctx, turns, question, standalone)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}

	if err := s.store.Append(ctx, sessionID, domain.UserTurn(question), domain.AssistantTurn(answer.Text)); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	log.Info("question answered",
		zap.Int("history_turns", len(turns)+2),
		zap.Int("sources", len(answer.Sources)))

	return &domain.ChatResponse{
		SessionID:          sessionID,
		Answer:             answer.Text,
		StandaloneQuestion: standalone,
		Sources:            answer.Sources,
	}, nil
}

// stage runs fn under the per-stage deadline and records its latency.
func (s *OrchestratorService) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveLLM(name, time.Since(start))
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w (%w)", err, ctx.Err())
	}
	return err
}

// History returns the turns recorded for sessionID
func (s *OrchestratorService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrInvalidRequest)
	}
	return s.store.Turns(ctx, sessionID)
}

// Sessions lists the sessions that have history
func (s *OrchestratorService) Sessions(ctx context.Context) ([]string, error) {
	return s.store.Sessions(ctx)
}
