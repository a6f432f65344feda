package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"aido/internal/message"
	"aido/internal/tool"
)

// OpenAIClient talks to any OpenAI-compatible chat-completion endpoint.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	maxRetries  int
	stream      bool
	onChunk     func(string)
	log         *zap.Logger
}

type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	RequestTimeout time.Duration
	MaxRetries     int
	Stream         bool
	// OnChunk receives content fragments as they arrive in stream mode.
	OnChunk func(string)
	Logger  *zap.Logger
}

func NewOpenAIClient(opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 6 {
		opts.MaxRetries = 6
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIClient{
		api:         openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		timeout:     opts.RequestTimeout,
		maxRetries:  opts.MaxRetries,
		stream:      opts.Stream,
		onChunk:     opts.OnChunk,
		log:         log,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, msgs []message.Message, tools []tool.Spec) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    toWireMessages(msgs),
		Tools:       toWireTools(tools),
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitBackoff(ctx, attempt); err != nil {
				return Completion{}, err
			}
			c.log.Warn("retrying completion request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		var comp Completion
		var err error
		if c.stream {
			comp, err = c.completeStream(reqCtx, req)
		} else {
			comp, err = c.completeOnce(reqCtx, req)
		}
		if cancel != nil {
			cancel()
		}
		if err == nil {
			// Model-response policy: when a response carries both text
			// and tool calls, the calls win and the text is dropped.
			if len(comp.ToolCalls) > 0 && comp.Text != "" {
				c.log.Debug("dropping text accompanying tool calls",
					zap.Int("tool_calls", len(comp.ToolCalls)))
				comp.Text = ""
			}
			return comp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !shouldRetry(err) {
			break
		}
	}
	return Completion{}, lastErr
}

func (c *OpenAIClient) completeOnce(ctx context.Context, req openai.ChatCompletionRequest) (Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, wrapTransport(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &TransportError{Err: errors.New("empty chat choices")}
	}
	choice := resp.Choices[0]
	return Completion{
		Text:      choice.Message.Content,
		ToolCalls: fromWireCalls(choice.Message.ToolCalls),
		Usage: message.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) completeStream(ctx context.Context, req openai.ChatCompletionRequest) (Completion, error) {
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Completion{}, wrapTransport(err)
	}
	defer stream.Close()

	var text strings.Builder
	var calls []openai.ToolCall
	var usage message.Usage
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Completion{}, wrapTransport(err)
		}
		if chunk.Usage != nil {
			usage = message.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if c.onChunk != nil {
				c.onChunk(delta.Content)
			}
		}
		mergeCallDeltas(&calls, delta.ToolCalls)
	}
	return Completion{
		Text:      text.String(),
		ToolCalls: fromWireCalls(calls),
		Usage:     usage,
	}, nil
}

// mergeCallDeltas folds streamed tool-call fragments into complete
// calls, keyed by the chunk index. Name and ID arrive once; argument
// text arrives in pieces and is concatenated.
func mergeCallDeltas(calls *[]openai.ToolCall, deltas []openai.ToolCall) {
	for _, d := range deltas {
		idx := 0
		if d.Index != nil {
			idx = *d.Index
		}
		for len(*calls) <= idx {
			*calls = append(*calls, openai.ToolCall{})
		}
		cur := &(*calls)[idx]
		if d.ID != "" {
			cur.ID = d.ID
		}
		if d.Function.Name != "" {
			cur.Function.Name = d.Function.Name
		}
		cur.Function.Arguments += d.Function.Arguments
	}
}

func toWireMessages(msgs []message.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		wire := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case message.RoleSystem:
			wire.Role = openai.ChatMessageRoleSystem
		case message.RoleUser:
			wire.Role = openai.ChatMessageRoleUser
		case message.RoleAssistant:
			wire.Role = openai.ChatMessageRoleAssistant
			for _, tc := range m.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
		case message.RoleTool:
			wire.Role = openai.ChatMessageRoleTool
			wire.ToolCallID = m.ToolCallID
		}
		out = append(out, wire)
	}
	return out
}

func toWireTools(specs []tool.Spec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Schema(),
			},
		})
	}
	return out
}

func fromWireCalls(calls []openai.ToolCall) []message.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]message.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := strings.TrimSpace(c.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		id := c.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out = append(out, message.ToolCall{
			ID:   id,
			Name: strings.ToLower(strings.TrimSpace(c.Function.Name)),
			Args: json.RawMessage(args),
		})
	}
	return out
}

func wrapTransport(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Err: err}
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Status == 429 || te.Status >= 500 {
		return true
	}
	// Per-request timeouts and connection drops carry no status.
	return te.Status == 0
}

func waitBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt) * 500 * time.Millisecond
	if delay > 8*time.Second {
		delay = 8 * time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
