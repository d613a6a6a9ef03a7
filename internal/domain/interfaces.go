package domain

import "context"

// RetrievalResult is what the retrieval collaborator reports for one query.
// A non-empty Error means Context and Sources must not be consumed.
type RetrievalResult struct {
	Context string
	Sources []string
	Error   string
}

// Failed reports whether the retrieval collaborator signalled an error.
func (r RetrievalResult) Failed() bool { return r.Error != "" }

// CompletionRequest is the body sent to the completion server's generation endpoint.
type CompletionRequest struct {
	Prompt        string   `json:"prompt"`
	NPredict      int      `json:"n_predict"`
	Temperature   float64  `json:"temperature"`
	TopK          int      `json:"top_k"`
	TopP          float64  `json:"top_p"`
	Stop          []string `json:"stop"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	RepeatLastN   int      `json:"repeat_last_n"`
	Mirostat      int      `json:"mirostat"`
	MirostatTau   float64  `json:"mirostat_tau"`
	MirostatEta   float64  `json:"mirostat_eta"`
}

// CompletionResult is the subset of the generation response the pipeline reads.
type CompletionResult struct {
	Content         string `json:"content"`
	TokensPredicted *int   `json:"tokens_predicted,omitempty"`
}

// FinalAnswer is returned to callers. Reply is never empty.
type FinalAnswer struct {
	Reply   string   `json:"reply"`
	Sources []string `json:"sources"`
}

// Retriever fetches context snippets and citations for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) RetrievalResult
}

// PromptBuilder assembles the instruction prompt sent to the model.
type PromptBuilder interface {
	Build(query, context string) string
}

// Completer turns a prompt into raw generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HealthChecker reports whether the completion server is ready.
type HealthChecker interface {
	Check(ctx context.Context) bool
}

// Sanitizer post-processes generated text into user-facing text.
type Sanitizer interface {
	Sanitize(raw string) string
}

// ChatService defines the operations exposed by the application core.
type ChatService interface {
	HandleQuery(ctx context.Context, query string) (FinalAnswer, error)
}
