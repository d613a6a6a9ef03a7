package metrics

import "time"

// Outcome enumerates how a query ended.
type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeUnavailable     Outcome = "unavailable"
	OutcomeRetrievalFailed Outcome = "retrieval_failed"
	OutcomeCompletionFail  Outcome = "completion_failed"
	OutcomeOffTopic        Outcome = "off_topic"
)

// Stage names used for duration histograms.
const (
	StageHealth     = "health"
	StageRetrieval  = "retrieval"
	StageCompletion = "completion"
)

// Recorder defines observability hooks for the chat pipeline.
type Recorder interface {
	IncQuery(outcome Outcome)
	ObserveStageDuration(stage string, d time.Duration)
	IncCompletionAttempt(success bool)
	IncSanitizerFallback(reason string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncQuery(Outcome)                           {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncCompletionAttempt(bool)                  {}
func (NoopRecorder) IncSanitizerFallback(string)                {}
