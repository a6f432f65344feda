package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"aido/internal/confirm"
	"aido/internal/convo"
	"aido/internal/llm"
	"aido/internal/message"
	"aido/internal/tool"
)

// State names the phases of one run, used for trace logging.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingModel        State = "awaiting-model"
	StatePendingToolCall      State = "pending-tool-call"
	StateAwaitingConfirmation State = "awaiting-confirmation"
	StateExecuting            State = "executing"
	StateFinalAnswer          State = "final-answer"
	StateAborted              State = "aborted"
	StateFailed               State = "failed"
)

type Outcome string

const (
	OutcomeAnswer  Outcome = "answer"
	OutcomeAborted Outcome = "aborted"
	OutcomeFailed  Outcome = "failed"
)

const (
	ReasonTurnLimit = "turn limit exceeded"
	ReasonDenied    = "confirmation denied repeatedly"
	ReasonCanceled  = "canceled"
)

// TurnResult is what one user request produced. Conversation carries
// every message appended along the way, including on abort, so the
// caller can persist partial progress.
type TurnResult struct {
	Answer       string
	Outcome      Outcome
	Reason       string
	Conversation convo.Conversation
}

// Engine drives the request loop: ask the model, execute the tool calls
// it requests, feed the outcomes back, repeat until it answers in plain
// text or a bound trips.
type Engine struct {
	client     llm.Client
	registry   *tool.Registry
	gate       confirm.Gate
	log        *zap.Logger
	maxTurns   int
	maxDenials int
}

type Options struct {
	// MaxTurns bounds the number of model round-trips in one run.
	MaxTurns int
	// MaxDenials bounds how many confirmation denials one run tolerates
	// before aborting.
	MaxDenials int
}

func New(client llm.Client, registry *tool.Registry, gate confirm.Gate, log *zap.Logger, opts Options) *Engine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.MaxDenials <= 0 {
		opts.MaxDenials = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		client:     client,
		registry:   registry,
		gate:       gate,
		log:        log,
		maxTurns:   opts.MaxTurns,
		maxDenials: opts.MaxDenials,
	}
}

// Run appends the user input to the conversation and loops until the
// model produces a final answer or the run aborts. Only tools in the
// allow-list that are registered and enabled are ever advertised or
// executed; a call to anything else is answered with a denial message
// and the loop continues.
func (e *Engine) Run(ctx context.Context, conv convo.Conversation, allowed []string, input string) (TurnResult, error) {
	if strings.TrimSpace(input) != "" {
		conv.Append(message.User(input))
	}
	conv.AllowedTools = normalizeNames(allowed)

	advertised := e.registry.Advertised(conv.AllowedTools)
	allowedSet := map[string]struct{}{}
	for _, s := range advertised {
		allowedSet[s.Name] = struct{}{}
	}

	denials := 0
	for turn := 1; ; turn++ {
		if turn > e.maxTurns {
			e.log.Warn("aborting run", zap.String("reason", ReasonTurnLimit), zap.Int("max_turns", e.maxTurns))
			return e.abort(conv, ReasonTurnLimit)
		}
		if ctx.Err() != nil {
			return e.abort(conv, ReasonCanceled)
		}

		e.trace(StateAwaitingModel, zap.Int("turn", turn))
		comp, err := e.client.Complete(ctx, conv.Messages, advertised)
		if err != nil {
			if ctx.Err() != nil {
				return e.abort(conv, ReasonCanceled)
			}
			e.trace(StateFailed, zap.Error(err))
			return TurnResult{Outcome: OutcomeFailed, Conversation: conv}, fmt.Errorf("model call failed: %w", err)
		}
		conv.Usage = conv.Usage.Add(comp.Usage)

		if len(comp.ToolCalls) == 0 {
			conv.Append(message.Assistant(comp.Text, nil))
			e.trace(StateFinalAnswer, zap.Int("turn", turn))
			return TurnResult{Answer: comp.Text, Outcome: OutcomeAnswer, Conversation: conv}, nil
		}

		conv.Append(message.Assistant("", comp.ToolCalls))
		for _, call := range comp.ToolCalls {
			e.trace(StatePendingToolCall, zap.String("tool", call.Name))

			name := strings.ToLower(strings.TrimSpace(call.Name))
			spec, ok := e.registry.Get(name)
			if _, allowedTool := allowedSet[name]; !ok || !spec.Enabled || !allowedTool {
				e.log.Info("tool call refused", zap.String("tool", call.Name))
				conv.Append(message.ToolResult(call.ID,
					fmt.Sprintf("permission denied: tool %q is not available in this conversation", call.Name)))
				continue
			}

			if spec.RequireConfirm {
				e.trace(StateAwaitingConfirmation, zap.String("tool", spec.Name))
				approved, err := e.gate.Confirm(ctx, spec.Name, call.Args)
				if err != nil {
					if ctx.Err() != nil {
						return e.abort(conv, ReasonCanceled)
					}
					e.trace(StateFailed, zap.Error(err))
					return TurnResult{Outcome: OutcomeFailed, Conversation: conv}, fmt.Errorf("confirmation failed: %w", err)
				}
				if !approved {
					denials++
					conv.Append(message.ToolResult(call.ID,
						fmt.Sprintf("execution of tool %q was denied by the user", spec.Name)))
					if denials >= e.maxDenials {
						e.log.Warn("aborting run", zap.String("reason", ReasonDenied), zap.Int("denials", denials))
						return e.abort(conv, ReasonDenied)
					}
					continue
				}
			}

			e.trace(StateExecuting, zap.String("tool", spec.Name))
			outcome, err := spec.Exec.Execute(ctx, call.Args)
			if err != nil {
				outcome = tool.Outcome{Status: tool.StatusStartFailed, Stderr: err.Error()}
			}
			conv.Append(message.ToolResult(call.ID, outcome.Render()))
			e.log.Debug("tool finished",
				zap.String("tool", spec.Name),
				zap.String("status", string(outcome.Status)))
		}
	}
}

func (e *Engine) abort(conv convo.Conversation, reason string) (TurnResult, error) {
	e.trace(StateAborted, zap.String("reason", reason))
	return TurnResult{Outcome: OutcomeAborted, Reason: reason, Conversation: conv}, nil
}

func (e *Engine) trace(s State, fields ...zap.Field) {
	e.log.Debug("engine state", append([]zap.Field{zap.String("state", string(s))}, fields...)...)
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]struct{}{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
