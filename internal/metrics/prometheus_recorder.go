package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	queries            *prom.CounterVec
	stageDuration      *prom.HistogramVec
	completionAttempts *prom.CounterVec
	sanitizerFallbacks *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		queries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ragchat",
			Name:      "queries_total",
			Help:      "Chat queries by final outcome",
		}, []string{"outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ragchat",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		completionAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ragchat",
			Name:      "completion_attempts_total",
			Help:      "Completion server requests by result",
		}, []string{"result"}),
		sanitizerFallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ragchat",
			Name:      "sanitizer_fallbacks_total",
			Help:      "Replies replaced by a canned message, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.queries, pr.stageDuration, pr.completionAttempts, pr.sanitizerFallbacks)
	return pr
}

func (p *PrometheusRecorder) IncQuery(outcome Outcome) {
	if p == nil {
		return
	}
	p.queries.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompletionAttempt(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.completionAttempts.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncSanitizerFallback(reason string) {
	if p == nil {
		return
	}
	p.sanitizerFallbacks.WithLabelValues(reason).Inc()
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg prom.Gatherer) http.Handler {
	if reg == nil {
		reg = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
