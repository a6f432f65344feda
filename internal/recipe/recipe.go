package recipe

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"aido/internal/message"
)

var (
	ErrNotFound = errors.New("recipe: not found")
	ErrEmpty    = errors.New("recipe: file is empty")
)

// UnknownToolError reports an allow-list entry that no registered,
// enabled tool satisfies. Raised at load time, before any model call.
type UnknownToolError struct {
	Recipe string
	Tool   string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("recipe %q allows tool %q which is not registered or not enabled", e.Recipe, e.Tool)
}

// Recipe is one named prompt: a system-prompt body plus the tools the
// model may use while serving it.
type Recipe struct {
	Name         string
	AllowedTools []string
	Body         string
}

// Seed produces the system message that opens a fresh conversation.
func (r Recipe) Seed() message.Message {
	return message.System(r.Body)
}

type header struct {
	Name         string   `yaml:"name"`
	AllowedTools []string `yaml:"allowed_tools"`
}

// Front matter is delimited by lines of three or more dashes. The body
// is everything after the closing delimiter.
var frontMatterRe = regexp.MustCompile(`(?s)\A-{3,}[ \t]*\n(.*?)\n-{3,}[ \t]*(?:\n(.*))?\z`)

// Parse splits a recipe file into header and body. fallbackName is used
// when the header carries no name. A file without front matter, or with
// front matter that is not valid YAML, is treated as all body.
func Parse(fallbackName, content string) (Recipe, error) {
	if strings.TrimSpace(content) == "" {
		return Recipe{}, ErrEmpty
	}
	r := Recipe{Name: fallbackName}
	m := frontMatterRe.FindStringSubmatch(content)
	if m == nil {
		r.Body = strings.TrimSpace(content)
		return r, nil
	}
	var h header
	if err := yaml.Unmarshal([]byte(m[1]), &h); err == nil {
		if strings.TrimSpace(h.Name) != "" {
			r.Name = strings.TrimSpace(h.Name)
		}
		for _, t := range h.AllowedTools {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				r.AllowedTools = append(r.AllowedTools, t)
			}
		}
	}
	r.Body = strings.TrimSpace(m[2])
	return r, nil
}
