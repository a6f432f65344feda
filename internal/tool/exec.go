package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusExit        Status = "exit"
	StatusStartFailed Status = "start-failed"
	StatusTimeout     Status = "timeout"
	StatusBadArgs     Status = "bad-args"
)

// Outcome is the result of one tool invocation. Stdout and Stderr are
// captured separately; Status says how the process ended.
type Outcome struct {
	Status   Status `json:"status"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Render produces the model-facing text for this outcome. Failures are
// described, never hidden, so the model can react to them.
func (o Outcome) Render() string {
	switch o.Status {
	case StatusOK:
		if strings.TrimSpace(o.Stdout) == "" {
			return "(no output)"
		}
		return o.Stdout
	case StatusBadArgs:
		return "invalid arguments: " + o.Stderr
	case StatusTimeout:
		return "error: tool timed out"
	case StatusStartFailed:
		return "error: could not start tool: " + o.Stderr
	default:
		msg := fmt.Sprintf("error: tool exited with status %d", o.ExitCode)
		if strings.TrimSpace(o.Stderr) != "" {
			msg += "\n" + o.Stderr
		}
		return msg
	}
}

// CommandExecutor runs a local executable. Declared arguments map to
// positional argv entries in declaration order; there is no shell in
// between, so values are never interpreted.
type CommandExecutor struct {
	Path        string
	BaseArgs    []string
	Args        []Arg
	Timeout     time.Duration
	OutputLimit int
}

func (e *CommandExecutor) Execute(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	argv, badArgs := e.buildArgv(raw)
	if badArgs != "" {
		return Outcome{Status: StatusBadArgs, Stderr: badArgs}, nil
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Path, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	out := Outcome{
		Stdout: trimOutput(stdout.String(), e.OutputLimit),
		Stderr: trimOutput(stderr.String(), e.OutputLimit),
	}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		out.Status = StatusOK
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.Status = StatusTimeout
	case errors.As(runErr, &exitErr):
		out.Status = StatusExit
		out.ExitCode = exitErr.ExitCode()
	default:
		out.Status = StatusStartFailed
		out.Stderr = runErr.Error()
	}
	return out, nil
}

// buildArgv validates the raw JSON argument object against the declared
// arguments and renders the positional argv. A non-empty second return
// is the validation failure, reported back to the model rather than
// aborting the run.
func (e *CommandExecutor) buildArgv(raw json.RawMessage) ([]string, string) {
	values := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, "arguments are not a JSON object: " + err.Error()
		}
	}

	declared := map[string]struct{}{}
	for _, a := range e.Args {
		declared[a.Name] = struct{}{}
	}
	var unknown []string
	for name := range values {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Sprintf("unknown argument %q", unknown[0])
	}

	argv := append([]string(nil), e.BaseArgs...)
	for _, a := range e.Args {
		v, ok := values[a.Name]
		if !ok {
			if a.Required {
				return nil, fmt.Sprintf("missing required argument %q", a.Name)
			}
			continue
		}
		rendered, err := renderValue(v)
		if err != nil {
			return nil, fmt.Sprintf("argument %q: %v", a.Name, err)
		}
		if len(a.Enum) > 0 && !contains(a.Enum, rendered) {
			return nil, fmt.Sprintf("argument %q must be one of %s", a.Name, strings.Join(a.Enum, ", "))
		}
		argv = append(argv, rendered)
	}
	return argv, ""
}

func renderValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return fmt.Sprintf("%v", t), nil
	case bool:
		return fmt.Sprintf("%v", t), nil
	default:
		return "", errors.New("must be a string, number, or boolean")
	}
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}

func trimOutput(s string, limit int) string {
	if limit <= 0 {
		limit = 50 * 1024
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + fmt.Sprintf("\n...[truncated %d chars]", len(r)-limit)
}
