package confirm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Gate decides whether a guarded tool call may execute. The engine asks
// before every execution of a tool that requires confirmation.
type Gate interface {
	Confirm(ctx context.Context, toolName string, args json.RawMessage) (bool, error)
}

// TTYGate prompts on the terminal. When stdin is not a terminal there is
// nobody to ask, so every request resolves to denied.
type TTYGate struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

func NewTTYGate() *TTYGate {
	return &TTYGate{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (g *TTYGate) Confirm(ctx context.Context, toolName string, args json.RawMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !g.interactive {
		return false, nil
	}
	fmt.Fprintf(g.out, "\n[confirmation required]\ntool: %s\nargs: %s\nrun? [y/N]: ", toolName, clip(string(args), 600))
	reader := bufio.NewReader(g.in)
	text, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// StaticGate answers every request the same way. Useful for scripted
// runs and tests.
type StaticGate bool

func (g StaticGate) Confirm(ctx context.Context, _ string, _ json.RawMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(g), nil
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
