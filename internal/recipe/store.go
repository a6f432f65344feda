package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aido/internal/tool"
)

const fileExt = ".recipe"

// Store loads recipes from a directory and validates their allow-lists
// against the tool registry before any run starts.
type Store struct {
	dir      string
	registry *tool.Registry
}

func NewStore(dir string, registry *tool.Registry) *Store {
	return &Store{dir: dir, registry: registry}
}

// Load reads <name>.recipe and validates it. An allow-list entry naming
// an unknown or disabled tool fails the load; it never degrades into a
// silent per-call denial.
func (s *Store) Load(name string) (Recipe, error) {
	name = strings.TrimSpace(name)
	path := filepath.Join(s.dir, name+fileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Recipe{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Recipe{}, fmt.Errorf("read recipe %s: %w", name, err)
	}
	r, err := Parse(name, string(data))
	if err != nil {
		return Recipe{}, fmt.Errorf("parse recipe %s: %w", name, err)
	}
	for _, t := range r.AllowedTools {
		spec, ok := s.registry.Get(t)
		if !ok || !spec.Enabled {
			return Recipe{}, &UnknownToolError{Recipe: name, Tool: t}
		}
	}
	return r, nil
}

// Info identifies a recipe for listings: the file stem used with -r and
// the display name from its header.
type Info struct {
	File string
	Name string
}

// List scans the recipes directory. Unreadable or empty files are
// skipped rather than failing the whole listing.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recipes dir: %w", err)
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), fileExt)
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		r, err := Parse(stem, string(data))
		if err != nil {
			continue
		}
		out = append(out, Info{File: stem, Name: r.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out, nil
}
