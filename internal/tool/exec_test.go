package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCommandExecutorCapturesStdout(t *testing.T) {
	args := []Arg{NewArg("text").AsRequired()}
	e := &CommandExecutor{Path: "echo", Args: args}
	out, err := e.Execute(context.Background(), json.RawMessage(`{"text":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusOK {
		t.Fatalf("expected ok, got %s (stderr: %q)", out.Status, out.Stderr)
	}
	if strings.TrimSpace(out.Stdout) != "hello" {
		t.Fatalf("unexpected stdout: %q", out.Stdout)
	}
}

func TestCommandExecutorMissingRequiredArg(t *testing.T) {
	args := []Arg{NewArg("path").AsRequired()}
	e := &CommandExecutor{Path: "cat", Args: args}
	out, err := e.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusBadArgs {
		t.Fatalf("expected bad-args, got %s", out.Status)
	}
	if !strings.Contains(out.Stderr, "path") {
		t.Fatalf("expected failure to name the argument, got %q", out.Stderr)
	}
}

func TestCommandExecutorUnknownArg(t *testing.T) {
	e := &CommandExecutor{Path: "date"}
	out, err := e.Execute(context.Background(), json.RawMessage(`{"bogus":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusBadArgs {
		t.Fatalf("expected bad-args, got %s", out.Status)
	}
	if !strings.Contains(out.Stderr, "bogus") {
		t.Fatalf("expected failure to name the argument, got %q", out.Stderr)
	}
}

func TestCommandExecutorMalformedArgs(t *testing.T) {
	e := &CommandExecutor{Path: "date"}
	out, err := e.Execute(context.Background(), json.RawMessage(`not json`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusBadArgs {
		t.Fatalf("expected bad-args, got %s", out.Status)
	}
}

func TestCommandExecutorEnum(t *testing.T) {
	args := []Arg{NewArg("mode").WithEnum("short", "long").AsRequired()}
	e := &CommandExecutor{Path: "echo", Args: args}
	out, err := e.Execute(context.Background(), json.RawMessage(`{"mode":"sideways"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusBadArgs {
		t.Fatalf("expected bad-args, got %s", out.Status)
	}
}

func TestCommandExecutorNonZeroExit(t *testing.T) {
	e := &CommandExecutor{Path: "false"}
	out, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusExit {
		t.Fatalf("expected exit, got %s", out.Status)
	}
	if out.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestCommandExecutorStartFailure(t *testing.T) {
	e := &CommandExecutor{Path: "definitely-not-a-real-binary-93413"}
	out, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusStartFailed {
		t.Fatalf("expected start-failed, got %s", out.Status)
	}
}

func TestCommandExecutorTimeout(t *testing.T) {
	args := []Arg{NewArg("seconds").AsRequired()}
	e := &CommandExecutor{Path: "sleep", Args: args, Timeout: 50 * time.Millisecond}
	out, err := e.Execute(context.Background(), json.RawMessage(`{"seconds":"5"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusTimeout {
		t.Fatalf("expected timeout, got %s", out.Status)
	}
}

func TestTrimOutput(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := trimOutput(long, 10)
	if !strings.HasPrefix(got, strings.Repeat("x", 10)) {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "truncated 90") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if trimOutput("short", 10) != "short" {
		t.Fatal("short output must pass through unchanged")
	}
}

func TestOutcomeRender(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    string
	}{
		{Outcome{Status: StatusOK, Stdout: "files\n"}, "files\n"},
		{Outcome{Status: StatusOK}, "(no output)"},
		{Outcome{Status: StatusBadArgs, Stderr: "missing required argument \"path\""}, "invalid arguments: missing required argument \"path\""},
		{Outcome{Status: StatusTimeout}, "error: tool timed out"},
	}
	for _, tc := range cases {
		if got := tc.outcome.Render(); got != tc.want {
			t.Fatalf("Render(%s) = %q, want %q", tc.outcome.Status, got, tc.want)
		}
	}
}
