package domain

import "fmt"

// RetrievalError is raised when the retrieval collaborator reports a failure.
type RetrievalError struct {
	Message string
}

func (e *RetrievalError) Error() string {
	return "retrieval failed: " + e.Message
}

// CompletionError wraps the last error of an exhausted or aborted completion call.
type CompletionError struct {
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
