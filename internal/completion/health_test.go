package completion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func healthServer(status int, body string, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestHealthChecker_Check(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"Should be healthy when status is ok", http.StatusOK, `{"status":"ok"}`, true},
		{"Should be unhealthy while the model loads", http.StatusServiceUnavailable, `{"status":"loading model"}`, false},
		{"Should be unhealthy for another status value", http.StatusOK, `{"status":"OK"}`, false},
		{"Should be unhealthy for an unreadable body", http.StatusOK, `not json`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := healthServer(tc.status, tc.body, 0)
			defer srv.Close()
			base, port := splitServer(t, srv)
			h := NewHealthChecker(base, port, "//health", time.Second)
			assert.Equal(t, tc.want, h.Check(context.Background()))
		})
	}

	t.Run("Should be unhealthy when the server is unreachable", func(t *testing.T) {
		srv := healthServer(http.StatusOK, `{"status":"ok"}`, 0)
		base, port := splitServer(t, srv)
		srv.Close()
		assert.False(t, NewHealthChecker(base, port, "/health", time.Second).Check(context.Background()))
	})

	t.Run("Should be unhealthy when the probe times out", func(t *testing.T) {
		srv := healthServer(http.StatusOK, `{"status":"ok"}`, 500*time.Millisecond)
		defer srv.Close()
		base, port := splitServer(t, srv)
		assert.False(t, NewHealthChecker(base, port, "/health", 50*time.Millisecond).Check(context.Background()))
	})

	t.Run("Should normalise the probe URL", func(t *testing.T) {
		h := NewHealthChecker("http://localhost", 8080, "//health", 0)
		assert.Equal(t, "http://localhost:8080/health", h.URL())
	})
}
