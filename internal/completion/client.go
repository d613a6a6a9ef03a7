package completion

import (
	"context"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// Generation parameters are engine tuning, not request configuration.
const (
	nPredict      = 500
	temperature   = 0.1
	topK          = 30
	topP          = 0.85
	repeatPenalty = 1.5
	repeatLastN   = 0
	mirostat      = 2
	mirostatTau   = 5.0
	mirostatEta   = 0.1
)

var stopSequences = []string{"</s>", "[INST]", "\n\n"}

var duplicateSlashes = regexp.MustCompile(`([^:]/)/+`)

// ServerURL joins base, port and path and collapses accidental duplicate slashes.
func ServerURL(base string, port int, path string) string {
	raw := fmt.Sprintf("%s:%d%s", strings.TrimRight(base, "/"), port, path)
	return duplicateSlashes.ReplaceAllString(raw, "$1")
}

// Config configures the completion client.
type Config struct {
	BaseURL        string
	Port           int
	CompletionPath string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Classifier     Classifier
}

// Client sends prompts to a llama.cpp compatible /completion endpoint.
type Client struct {
	http       *resty.Client
	url        string
	maxRetries uint64
	delay      time.Duration
	classify   Classifier
	metrics    metrics.Recorder
}

func NewClient(cfg Config, rec metrics.Recorder) *Client {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if cfg.Classifier == nil {
		cfg.Classifier = RetryAll
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		// go-retry rejects a zero constant backoff.
		delay = time.Nanosecond
	}
	h := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger.Default().With("component", "resty")})
	if cfg.RequestTimeout > 0 {
		h.SetTimeout(cfg.RequestTimeout)
	}
	return &Client{
		http:       h,
		url:        ServerURL(cfg.BaseURL, cfg.Port, cfg.CompletionPath),
		maxRetries: uint64(cfg.MaxRetries),
		delay:      delay,
		classify:   cfg.Classifier,
		metrics:    rec,
	}
}

// NewRequest returns the generation body for prompt with the fixed parameters.
func NewRequest(prompt string) domain.CompletionRequest {
	return domain.CompletionRequest{
		Prompt:        prompt,
		NPredict:      nPredict,
		Temperature:   temperature,
		TopK:          topK,
		TopP:          topP,
		Stop:          append([]string(nil), stopSequences...),
		RepeatPenalty: repeatPenalty,
		RepeatLastN:   repeatLastN,
		Mirostat:      mirostat,
		MirostatTau:   mirostatTau,
		MirostatEta:   mirostatEta,
	}
}

// Complete returns the generated text for prompt. The whole request is
// re-sent after a fixed delay while the classifier deems the failure
// retryable and attempts remain.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContext(ctx).With("component", "completion")
	req := NewRequest(prompt)
	attempts := 0
	var result domain.CompletionResult
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := c.send(ctx, req)
		c.metrics.IncCompletionAttempt(err == nil)
		if err != nil {
			retryable := c.classify(err)
			log.Warn("Completion attempt failed", "attempt", attempts, "retryable", retryable, "error", err)
			if retryable {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return "", &domain.CompletionError{Attempts: attempts, Err: err}
	}
	fields := []any{"attempts", attempts, "chars", len(result.Content)}
	if result.TokensPredicted != nil {
		fields = append(fields, "tokens_predicted", *result.TokensPredicted)
	}
	log.Debug("Completion received", fields...)
	return result.Content, nil
}

func (c *Client) send(ctx context.Context, body domain.CompletionRequest) (domain.CompletionResult, error) {
	var out domain.CompletionResult
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(c.url)
	if err != nil {
		return out, err
	}
	if !resp.IsSuccess() {
		return out, &StatusError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       truncate(strings.TrimSpace(resp.String()), 200),
		}
	}
	raw := resp.Body()
	if len(bytes.TrimSpace(raw)) == 0 {
		// Same as a body without "content".
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{Err: err}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// restyLogger routes resty's internal messages into the structured logger.
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.log.Error(fmt.Sprintf(format, v...)) }
func (l restyLogger) Warnf(format string, v ...any)  { l.log.Warn(fmt.Sprintf(format, v...)) }
func (l restyLogger) Debugf(format string, v ...any) { l.log.Debug(fmt.Sprintf(format, v...)) }
