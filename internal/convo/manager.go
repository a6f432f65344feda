package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aido/internal/message"
	"aido/internal/storage"
)

// Conversation is one persisted transcript. AllowedTools records the
// allow-list the last run used, so a continuation can inherit it.
type Conversation struct {
	ID           string            `json:"id"`
	Messages     []message.Message `json:"messages"`
	AllowedTools []string          `json:"allowed_tools,omitempty"`
	Usage        message.Usage     `json:"usage"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (c *Conversation) Append(msgs ...message.Message) {
	c.Messages = append(c.Messages, msgs...)
}

type Manager struct {
	store storage.Store
}

func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Create(ctx context.Context) (Conversation, error) {
	now := time.Now().UTC()
	c := Conversation{
		ID:        buildID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Save(ctx, &c); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Conversation, error) {
	raw, err := m.store.LoadConversation(ctx, strings.TrimSpace(id))
	if err != nil {
		return Conversation{}, err
	}
	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return c, nil
}

// Latest loads the most recently saved conversation. storage.ErrNotFound
// when nothing has been saved yet.
func (m *Manager) Latest(ctx context.Context) (Conversation, error) {
	id, err := m.store.GetLatest(ctx)
	if err != nil {
		return Conversation{}, err
	}
	return m.Get(ctx, id)
}

// Save persists the conversation and marks it as the latest one.
func (m *Manager) Save(ctx context.Context, c *Conversation) error {
	c.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := m.store.SaveConversation(ctx, c.ID, raw); err != nil {
		return err
	}
	return m.store.SetLatest(ctx, c.ID)
}

func (m *Manager) ListIDs(ctx context.Context, limit int) ([]string, error) {
	return m.store.ListConversationIDs(ctx, limit)
}

func buildID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
