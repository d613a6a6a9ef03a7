package service

import (
	"context"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// UnavailableReply is returned when the completion server fails its health check.
const UnavailableReply = "Our AI service is currently unavailable"

// ChatServiceImpl sequences health check, retrieval, prompt assembly,
// completion and sanitation for one query.
type ChatServiceImpl struct {
	health    domain.HealthChecker
	retriever domain.Retriever
	prompts   domain.PromptBuilder
	completer domain.Completer
	sanitizer domain.Sanitizer
	metrics   metrics.Recorder
}

func NewChatService(
	health domain.HealthChecker,
	retriever domain.Retriever,
	prompts domain.PromptBuilder,
	completer domain.Completer,
	sanitizer domain.Sanitizer,
	rec metrics.Recorder,
) *ChatServiceImpl {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &ChatServiceImpl{
		health:    health,
		retriever: retriever,
		prompts:   prompts,
		completer: completer,
		sanitizer: sanitizer,
		metrics:   rec,
	}
}

// HandleQuery answers query. A retrieval failure or exhausted completion
// retries are returned as errors; an unhealthy completion server is not an
// error and yields UnavailableReply with no sources.
func (s *ChatServiceImpl) HandleQuery(ctx context.Context, query string) (domain.FinalAnswer, error) {
	log := logger.FromContext(ctx)

	start := time.Now()
	healthy := s.health.Check(ctx)
	s.metrics.ObserveStageDuration(metrics.StageHealth, time.Since(start))
	if !healthy {
		s.metrics.IncQuery(metrics.OutcomeUnavailable)
		return domain.FinalAnswer{Reply: UnavailableReply, Sources: []string{}}, nil
	}

	start = time.Now()
	rag := s.retriever.Retrieve(ctx, query)
	s.metrics.ObserveStageDuration(metrics.StageRetrieval, time.Since(start))
	if rag.Failed() {
		s.metrics.IncQuery(metrics.OutcomeRetrievalFailed)
		return domain.FinalAnswer{}, &domain.RetrievalError{Message: rag.Error}
	}
	log.Debug("Retrieved context", "sources", len(rag.Sources), "context_chars", len(rag.Context))

	prompt := s.prompts.Build(query, rag.Context)

	start = time.Now()
	raw, err := s.completer.Complete(ctx, prompt)
	s.metrics.ObserveStageDuration(metrics.StageCompletion, time.Since(start))
	if err != nil {
		s.metrics.IncQuery(metrics.OutcomeCompletionFail)
		return domain.FinalAnswer{}, err
	}

	sources := rag.Sources
	if sources == nil {
		sources = []string{}
	}
	s.metrics.IncQuery(metrics.OutcomeAnswered)
	return domain.FinalAnswer{Reply: s.sanitizer.Sanitize(raw), Sources: sources}, nil
}
