package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
	"ragchat/internal/prompt"
	"ragchat/internal/sanitize"
)

type stubHealth struct {
	healthy bool
	calls   int
}

func (s *stubHealth) Check(context.Context) bool {
	s.calls++
	return s.healthy
}

type stubRetriever struct {
	result domain.RetrievalResult
	calls  int
	query  string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string) domain.RetrievalResult {
	s.calls++
	s.query = query
	return s.result
}

type stubCompleter struct {
	out    string
	err    error
	calls  int
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, p string) (string, error) {
	s.calls++
	s.prompt = p
	return s.out, s.err
}

type countingRecorder struct {
	outcomes []string
}

func (c *countingRecorder) IncQuery(o metrics.Outcome)                 { c.outcomes = append(c.outcomes, string(o)) }
func (c *countingRecorder) ObserveStageDuration(string, time.Duration) {}
func (c *countingRecorder) IncCompletionAttempt(bool)                  {}
func (c *countingRecorder) IncSanitizerFallback(string)                {}

func newService(h *stubHealth, r *stubRetriever, c *stubCompleter, rec *countingRecorder) *ChatServiceImpl {
	log := logger.NewLogger(logger.TestConfig())
	san := sanitize.New(sanitize.Config{
		MaxPoints:        5,
		MinBullets:       2,
		BlockedPhrases:   []string{"must comply or"},
		EmptyMessage:     "I couldn't generate a response.",
		BlockedMessage:   "For detailed policy questions, please contact HR directly.",
		FallbackPreamble: "I'm having trouble retrieving the full policy details. The key point is: ",
	}, log, nil)
	if rec == nil {
		rec = &countingRecorder{}
	}
	return NewChatService(h, r, prompt.NewBuilder(prompt.Config{}, log), c, san, rec)
}

func TestChatService_HandleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Should short-circuit when the completion server is down", func(t *testing.T) {
		h := &stubHealth{healthy: false}
		r := &stubRetriever{}
		c := &stubCompleter{}
		rec := &countingRecorder{}
		ans, err := newService(h, r, c, rec).HandleQuery(ctx, "leave policy?")
		require.NoError(t, err)
		assert.Equal(t, "Our AI service is currently unavailable", ans.Reply)
		assert.Equal(t, []string{}, ans.Sources)
		assert.Zero(t, r.calls)
		assert.Zero(t, c.calls)
		assert.Equal(t, []string{"unavailable"}, rec.outcomes)
	})

	t.Run("Should fail before completion when retrieval reports an error", func(t *testing.T) {
		h := &stubHealth{healthy: true}
		r := &stubRetriever{result: domain.RetrievalResult{Error: "Invalid JSON: boom", Context: "ignored"}}
		c := &stubCompleter{}
		_, err := newService(h, r, c, nil).HandleQuery(ctx, "leave policy?")
		require.Error(t, err)
		var re *domain.RetrievalError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "Invalid JSON: boom", re.Message)
		assert.Zero(t, c.calls)
	})

	t.Run("Should propagate completion failures", func(t *testing.T) {
		h := &stubHealth{healthy: true}
		r := &stubRetriever{result: domain.RetrievalResult{Context: "ctx", Sources: []string{"a"}}}
		boom := &domain.CompletionError{Attempts: 3, Err: errors.New("connection refused")}
		c := &stubCompleter{err: boom}
		_, err := newService(h, r, c, nil).HandleQuery(ctx, "leave policy?")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Should answer with sanitized text and unchanged sources", func(t *testing.T) {
		h := &stubHealth{healthy: true}
		r := &stubRetriever{result: domain.RetrievalResult{
			Context: "Annual leave is 20 days.",
			Sources: []string{"handbook.pdf#p3", "leave.pdf"},
		}}
		c := &stubCompleter{out: "1. SUMMARY: 20 days.\n1. SUMMARY: 20 days.\n- accrues monthly\n- 5 days carry over\nReference: [Policy HR-1]"}
		rec := &countingRecorder{}
		ans, err := newService(h, r, c, rec).HandleQuery(ctx, "How much annual leave?")
		require.NoError(t, err)
		assert.Equal(t, "1. SUMMARY: 20 days.\n- accrues monthly\n- 5 days carry over\nReference: [Policy HR-1]", ans.Reply)
		assert.Equal(t, []string{"handbook.pdf#p3", "leave.pdf"}, ans.Sources)
		assert.Equal(t, "How much annual leave?", r.query)
		assert.Contains(t, c.prompt, "Annual leave is 20 days.")
		assert.Contains(t, c.prompt, "QUESTION: How much annual leave?")
		assert.Equal(t, []string{"answered"}, rec.outcomes)
	})

	t.Run("Should replace an empty completion with a fallback", func(t *testing.T) {
		h := &stubHealth{healthy: true}
		r := &stubRetriever{result: domain.RetrievalResult{}}
		c := &stubCompleter{out: ""}
		ans, err := newService(h, r, c, nil).HandleQuery(ctx, "staff leave?")
		require.NoError(t, err)
		assert.NotEmpty(t, ans.Reply)
		assert.NotNil(t, ans.Sources)
		assert.Contains(t, c.prompt, "No matching policy found")
	})

	t.Run("Should block denylisted replies", func(t *testing.T) {
		h := &stubHealth{healthy: true}
		r := &stubRetriever{result: domain.RetrievalResult{Context: "ctx", Sources: []string{"s"}}}
		c := &stubCompleter{out: "You must comply or be dismissed.\n- a\n- b\nReference: x"}
		ans, err := newService(h, r, c, nil).HandleQuery(ctx, "attendance policy")
		require.NoError(t, err)
		assert.Equal(t, "For detailed policy questions, please contact HR directly.", ans.Reply)
		assert.Equal(t, []string{"s"}, ans.Sources)
	})
}
