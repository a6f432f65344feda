package llm

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"aido/internal/message"
	"aido/internal/tool"
)

func TestToWireMessages(t *testing.T) {
	msgs := []message.Message{
		message.System("be terse"),
		message.User("list files"),
		message.Assistant("", []message.ToolCall{{ID: "c1", Name: "ls", Args: json.RawMessage(`{"path":"."}`)}}),
		message.ToolResult("c1", "file.txt"),
		message.Assistant("there is one file", nil),
	}
	wire := toWireMessages(msgs)
	if len(wire) != 5 {
		t.Fatalf("expected 5 wire messages, got %d", len(wire))
	}
	if wire[0].Role != openai.ChatMessageRoleSystem || wire[1].Role != openai.ChatMessageRoleUser {
		t.Fatalf("unexpected roles: %s %s", wire[0].Role, wire[1].Role)
	}
	if len(wire[2].ToolCalls) != 1 || wire[2].ToolCalls[0].Function.Name != "ls" {
		t.Fatalf("tool call not mapped: %+v", wire[2].ToolCalls)
	}
	if wire[3].Role != openai.ChatMessageRoleTool || wire[3].ToolCallID != "c1" {
		t.Fatalf("tool result not mapped: %+v", wire[3])
	}
}

func TestToWireTools(t *testing.T) {
	specs := []tool.Spec{{
		Name:        "ls",
		Description: "list files",
		Enabled:     true,
		Args:        []tool.Arg{tool.NewArg("path")},
	}}
	wire := toWireTools(specs)
	if len(wire) != 1 {
		t.Fatalf("expected 1 wire tool, got %d", len(wire))
	}
	if wire[0].Type != openai.ToolTypeFunction || wire[0].Function.Name != "ls" {
		t.Fatalf("unexpected wire tool: %+v", wire[0])
	}
	if toWireTools(nil) != nil {
		t.Fatal("no specs must map to nil, not an empty list")
	}
}

func TestFromWireCallsFillsGaps(t *testing.T) {
	calls := fromWireCalls([]openai.ToolCall{
		{ID: "", Function: openai.FunctionCall{Name: " LS ", Arguments: ""}},
	})
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "ls" {
		t.Fatalf("name must be normalized, got %q", calls[0].Name)
	}
	if string(calls[0].Args) != "{}" {
		t.Fatalf("empty arguments must become an empty object, got %q", calls[0].Args)
	}
	if calls[0].ID == "" {
		t.Fatal("a missing call id must be generated")
	}
}

func TestMergeCallDeltas(t *testing.T) {
	idx0, idx1 := 0, 1
	var calls []openai.ToolCall
	mergeCallDeltas(&calls, []openai.ToolCall{
		{Index: &idx0, ID: "c1", Function: openai.FunctionCall{Name: "ls"}},
	})
	mergeCallDeltas(&calls, []openai.ToolCall{
		{Index: &idx0, Function: openai.FunctionCall{Arguments: `{"path`}},
		{Index: &idx1, ID: "c2", Function: openai.FunctionCall{Name: "date"}},
	})
	mergeCallDeltas(&calls, []openai.ToolCall{
		{Index: &idx0, Function: openai.FunctionCall{Arguments: `":"."}`}},
	})

	if len(calls) != 2 {
		t.Fatalf("expected 2 merged calls, got %d", len(calls))
	}
	if calls[0].ID != "c1" || calls[0].Function.Name != "ls" {
		t.Fatalf("unexpected first call: %+v", calls[0])
	}
	if calls[0].Function.Arguments != `{"path":"."}` {
		t.Fatalf("argument chunks must concatenate, got %q", calls[0].Function.Arguments)
	}
	if calls[1].ID != "c2" || calls[1].Function.Name != "date" {
		t.Fatalf("unexpected second call: %+v", calls[1])
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&TransportError{Status: 429, Err: errors.New("rate limited")}, true},
		{&TransportError{Status: 502, Err: errors.New("bad gateway")}, true},
		{&TransportError{Status: 0, Err: errors.New("connection reset")}, true},
		{&TransportError{Status: 400, Err: errors.New("bad request")}, false},
		{&TransportError{Status: 401, Err: errors.New("unauthorized")}, false},
		{errors.New("not a transport error"), false},
	}
	for _, tc := range cases {
		if got := shouldRetry(tc.err); got != tc.want {
			t.Fatalf("shouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWrapTransportKeepsStatus(t *testing.T) {
	err := wrapTransport(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if te.Status != 429 {
		t.Fatalf("unexpected status: %d", te.Status)
	}
}
