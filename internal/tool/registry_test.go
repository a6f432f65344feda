package tool

import (
	"context"
	"encoding/json"
	"testing"
)

type stubExecutor struct {
	calls   int
	outcome Outcome
}

func (s *stubExecutor) Execute(context.Context, json.RawMessage) (Outcome, error) {
	s.calls++
	return s.outcome, nil
}

func stubSpec(name string, enabled bool) Spec {
	return Spec{
		Name:        name,
		Description: "stub " + name,
		Enabled:     enabled,
		Exec:        &stubExecutor{outcome: Outcome{Status: StatusOK, Stdout: "ok"}},
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(stubSpec("ls", true)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(stubSpec("LS", true)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistryRejectsEmptyNameAndNilExec(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Spec{Name: "  ", Exec: &stubExecutor{}}); err == nil {
		t.Fatal("expected empty name to fail")
	}
	if err := reg.Register(Spec{Name: "ok"}); err == nil {
		t.Fatal("expected nil executor to fail")
	}
}

func TestRegistryGetNormalizesName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(stubSpec("ls", true)); err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("  LS "); !ok {
		t.Fatal("expected lookup to normalize case and whitespace")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected lookup of unknown tool to fail")
	}
}

func TestAdvertisedIntersectsAllowedWithEnabled(t *testing.T) {
	reg := NewRegistry()
	for _, s := range []Spec{stubSpec("ls", true), stubSpec("cat", true), stubSpec("rm", false)} {
		if err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	got := reg.Advertised([]string{"cat", "rm", "cat", "nope", "ls"})
	if len(got) != 2 {
		t.Fatalf("expected 2 advertised tools, got %d", len(got))
	}
	if got[0].Name != "cat" || got[1].Name != "ls" {
		t.Fatalf("expected sorted [cat ls], got [%s %s]", got[0].Name, got[1].Name)
	}

	if got := reg.Advertised(nil); len(got) != 0 {
		t.Fatalf("empty allow-list must advertise nothing, got %d", len(got))
	}
}

func TestEnabledNames(t *testing.T) {
	reg := NewRegistry()
	for _, s := range []Spec{stubSpec("b", true), stubSpec("a", true), stubSpec("c", false)} {
		if err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	got := reg.EnabledNames()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected enabled names: %v", got)
	}
}
