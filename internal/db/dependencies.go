package db

import "context"

type Client interface {
	Close() error

	GetMember(ctx context.Context, chatID, userID int64) (*ChatMember, error)
	SaveMember(ctx context.Context, member *ChatMember) error
	InsertMemberIfAbsent(ctx context.Context, member *ChatMember) error

	GetKeywords(ctx context.Context, chatID int64) ([]string, error)
	SetKeywords(ctx context.Context, chatID int64, keywords []string) error
	ClearKeywords(ctx context.Context, chatID int64) error

	GetChatConfig(ctx context.Context, chatID int64) (*ChatConfig, error)
	SetChatConfig(ctx context.Context, cfg *ChatConfig) error
	GetChatConfigsWithRecurrentText(ctx context.Context) ([]*ChatConfig, error)
}
