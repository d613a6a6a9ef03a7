package completion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"ragchat/internal/logger"
)

const defaultHealthTimeout = 5 * time.Second

// HealthChecker probes the completion server's liveness endpoint.
type HealthChecker struct {
	http *resty.Client
	url  string
}

func NewHealthChecker(baseURL string, port int, path string, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthChecker{
		http: resty.New().
			SetTimeout(timeout).
			SetLogger(restyLogger{logger.Default().With("component", "resty")}),
		url: ServerURL(baseURL, port, path),
	}
}

// URL returns the probed liveness URL.
func (h *HealthChecker) URL() string { return h.url }

// Check reports true only when the server answers 2xx with {"status":"ok"}.
// It never fails; errors are logged and reported as unhealthy.
func (h *HealthChecker) Check(ctx context.Context) bool {
	log := logger.FromContext(ctx).With("component", "health")
	resp, err := h.http.R().SetContext(ctx).Get(h.url)
	if err != nil {
		log.Warn("Health check failed", "url", h.url, "error", err)
		return false
	}
	if !resp.IsSuccess() {
		log.Warn("Health check failed", "url", h.url, "status", resp.Status())
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		log.Warn("Health check returned an unreadable body", "url", h.url, "error", err)
		return false
	}
	if body.Status != "ok" {
		log.Warn("Completion server not ready", "url", h.url, "status", body.Status)
		return false
	}
	return true
}
