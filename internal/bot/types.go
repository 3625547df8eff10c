package bot

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

// Handler is a single stage of the update processing chain. Returning
// proceed=false stops the chain for the current update.
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

// Button is an inline keyboard button with an opaque callback payload.
type Button struct {
	Text string
	Data string
}

type SendOptions struct {
	ReplyTo             int
	ParseMode           string
	Buttons             []Button
	DisableNotification bool
}

// ChatOps is the remote transport boundary. Implementations must not be
// called while holding engine locks; callers snapshot their decision first.
type ChatOps interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (messageID int, err error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, parseMode string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	BanMember(ctx context.Context, chatID, userID int64, until time.Time) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictMember(ctx context.Context, chatID, userID int64) error
	GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}
