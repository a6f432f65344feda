package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Executor runs a tool invocation. Operational failures (bad arguments,
// non-zero exit, timeout) are reported inside the Outcome; the error
// return is reserved for infrastructure faults.
type Executor interface {
	Execute(ctx context.Context, args json.RawMessage) (Outcome, error)
}

// Spec describes one invocable tool: its model-facing contract plus the
// executor that backs it.
type Spec struct {
	Name           string
	Description    string
	Enabled        bool
	RequireConfirm bool
	Args           []Arg
	Exec           Executor
}

// Schema renders the JSON schema advertised for this tool's arguments.
func (s Spec) Schema() json.RawMessage {
	return BuildSchema(s.Args)
}

type Registry struct {
	specs map[string]Spec
}

func NewRegistry() *Registry {
	return &Registry{specs: map[string]Spec{}}
}

func (r *Registry) Register(s Spec) error {
	name := strings.ToLower(strings.TrimSpace(s.Name))
	if name == "" {
		return errors.New("tool name is empty")
	}
	if s.Exec == nil {
		return fmt.Errorf("tool %q has no executor", name)
	}
	if _, ok := r.specs[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	s.Name = name
	r.specs[name] = s
	return nil
}

func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names lists every registered tool, enabled or not, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for name := range r.specs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EnabledNames lists the tools eligible for advertising.
func (r *Registry) EnabledNames() []string {
	out := make([]string, 0, len(r.specs))
	for name, s := range r.specs {
		if s.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Advertised returns the specs exposed to the model for one run: the
// intersection of the allow-list with the enabled tools, sorted by name.
// An empty allow-list advertises nothing; tools are opt-in per run.
func (r *Registry) Advertised(allowed []string) []Spec {
	out := make([]Spec, 0, len(allowed))
	seen := map[string]struct{}{}
	for _, name := range allowed {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if s, ok := r.specs[name]; ok && s.Enabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
