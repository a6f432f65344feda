package llm

import (
	"context"
	"fmt"

	"aido/internal/message"
	"aido/internal/tool"
)

// Completion is one model turn: either final text or a batch of tool
// calls, plus token usage when the endpoint reports it.
type Completion struct {
	Text      string
	ToolCalls []message.ToolCall
	Usage     message.Usage
}

// Client abstracts the chat-completion endpoint so the engine can run
// against a stub in tests.
type Client interface {
	Complete(ctx context.Context, msgs []message.Message, tools []tool.Spec) (Completion, error)
}

// TransportError wraps a completion request failure that survived the
// retry budget. Status is the HTTP status when one was received.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("completion request failed with HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
