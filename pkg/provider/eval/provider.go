// Package eval defines the Provider interface for the LLM backends that score
// completed interviews.
//
// An eval provider wraps a remote or local model API and exposes a single
// one-shot completion call. Evaluation is not conversational: the full frozen
// transcript is rendered into one prompt and the model answers once, so the
// interface deliberately omits streaming and history management.
//
// Implementors must be safe for concurrent use.
package eval

import "context"

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Request carries everything the model needs to produce an evaluation.
type Request struct {
	// SystemPrompt is the high-priority instruction defining the rubric and
	// the required output format.
	SystemPrompt string

	// Prompt is the user-role content, typically the rendered transcript.
	Prompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// requests the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Response is the model's complete answer to a Request.
type Response struct {
	// Content is the full text of the reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any evaluation-capable LLM backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)
}
