package storage

import "context"

type Store interface {
	SaveConversation(ctx context.Context, id string, data []byte) error
	LoadConversation(ctx context.Context, id string) ([]byte, error)
	ListConversationIDs(ctx context.Context, limit int) ([]string, error)
	SetLatest(ctx context.Context, id string) error
	GetLatest(ctx context.Context) (string, error)
}
