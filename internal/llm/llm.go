// Package llm wraps a chat-completion provider behind the three document
// operations: summarize, ask and key points.
package llm

import "context"

// Operation names a document operation; it also keys prompts and cache entries.
type Operation string

const (
	OpSummarize Operation = "summarize"
	OpAsk       Operation = "ask"
	OpKeyPoints Operation = "key_points"
)

// Request is one completion call.
type Request struct {
	Operation   Operation
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer is implemented by provider clients.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Describer is optionally implemented by completers that know their provider
// and model, for logs and cache keys.
type Describer interface {
	Provider() string
	Model() string
}

func describe(c Completer) (provider, model string) {
	if d, ok := c.(Describer); ok {
		return d.Provider(), d.Model()
	}
	return "unknown", ""
}
