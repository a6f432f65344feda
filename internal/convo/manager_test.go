package convo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"aido/internal/message"
	"aido/internal/storage"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store)
}

func TestManagerCreateAndGet(t *testing.T) {
	m := testManager(t)
	c, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" {
		t.Fatal("expected a conversation id")
	}

	got, err := m.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != c.ID {
		t.Fatalf("unexpected id: %q", got.ID)
	}
}

func TestManagerLatestRoundTrip(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}

	second.Append(message.User("hello"), message.Assistant("hi", nil))
	second.AllowedTools = []string{"ls"}
	if err := m.Save(ctx, &second); err != nil {
		t.Fatal(err)
	}

	latest, err := m.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest to be %q, got %q", second.ID, latest.ID)
	}
	if len(latest.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(latest.Messages))
	}
	if len(latest.AllowedTools) != 1 || latest.AllowedTools[0] != "ls" {
		t.Fatalf("allow-list must survive persistence, got %v", latest.AllowedTools)
	}
	if latest.ID == first.ID {
		t.Fatal("latest pointer did not advance")
	}
}

func TestManagerLatestEmptyStore(t *testing.T) {
	m := testManager(t)
	if _, err := m.Latest(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
