package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the completion server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion server returned %s", e.Status)
	}
	return fmt.Sprintf("completion server returned %s: %s", e.Status, e.Body)
}

// DecodeError is returned when a 2xx body cannot be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode completion response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Classifier reports whether a failed completion attempt should be retried.
type Classifier func(err error) bool

const (
	RetryModeTransient = "transient"
	RetryModeAll       = "all"
)

// ClassifierFor maps a configured retry mode to a Classifier. Only
// "transient" narrows retries; any other mode retries every failure.
func ClassifierFor(mode string) Classifier {
	if mode == RetryModeTransient {
		return RetryTransient
	}
	return RetryAll
}

// RetryTransient retries transport failures, timeouts, 408, 429, 5xx and
// undecodable bodies. Other 4xx responses are permanent. Opt-in.
func RetryTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 ||
			se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode == http.StatusRequestTimeout
	}
	return true
}

// RetryAll retries every failure except caller cancellation.
func RetryAll(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
