package telegram

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/staneins/SokrytBot/internal/bot"
)

// Operations implements bot.ChatOps on top of the Bot API transport.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(botAPI *api.BotAPI) *Operations {
	return &Operations{bot: botAPI}
}

func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string, opts bot.SendOptions) (int, error) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.DisableNotification = opts.DisableNotification
	if opts.ReplyTo != 0 {
		msg.ReplyParameters = api.ReplyParameters{
			MessageID:                opts.ReplyTo,
			AllowSendingWithoutReply: true,
		}
	}
	if len(opts.Buttons) > 0 {
		rows := make([][]api.InlineKeyboardButton, 0, len(opts.Buttons))
		for _, button := range opts.Buttons {
			rows = append(rows, api.NewInlineKeyboardRow(
				api.NewInlineKeyboardButtonData(button.Text, button.Data),
			))
		}
		msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	}

	sent, err := o.bot.Send(msg)
	if err != nil {
		return 0, errors.Wrap(err, "cant send message")
	}
	return sent.MessageID, nil
}

func (o *Operations) EditMessage(ctx context.Context, chatID int64, messageID int, text string, parseMode string) error {
	edit := api.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode
	if _, err := o.bot.Request(edit); err != nil {
		return errors.Wrap(err, "cant edit message")
	}
	return nil
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return errors.Wrap(err, "cant delete message")
	}
	return nil
}

func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := o.bot.Request(api.NewCallback(callbackID, text)); err != nil {
		return errors.Wrap(err, "cant answer callback")
	}
	return nil
}

func (o *Operations) BanMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	cfg := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	}
	if !until.IsZero() {
		cfg.UntilDate = until.Unix()
	}
	if _, err := o.bot.Request(cfg); err != nil {
		return errors.Wrap(err, "cant ban member")
	}
	return nil
}

func (o *Operations) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	cfg := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate:   until.Unix(),
		Permissions: chatPermissions(false),
	}
	if _, err := o.bot.Request(cfg); err != nil {
		return errors.Wrap(err, "cant restrict member")
	}
	return nil
}

func (o *Operations) UnrestrictMember(ctx context.Context, chatID, userID int64) error {
	cfg := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: chatPermissions(true),
	}
	if _, err := o.bot.Request(cfg); err != nil {
		return errors.Wrap(err, "cant unrestrict member")
	}
	return nil
}

func (o *Operations) GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	admins, err := o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cant get chat administrators")
	}
	ids := make([]int64, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.User.ID)
	}
	return ids, nil
}

func chatPermissions(allowed bool) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       allowed,
		CanSendAudios:         allowed,
		CanSendDocuments:      allowed,
		CanSendPhotos:         allowed,
		CanSendVideos:         allowed,
		CanSendVideoNotes:     allowed,
		CanSendVoiceNotes:     allowed,
		CanSendPolls:          allowed,
		CanSendOtherMessages:  allowed,
		CanAddWebPagePreviews: allowed,
		CanChangeInfo:         allowed,
		CanInviteUsers:        allowed,
		CanPinMessages:        allowed,
		CanManageTopics:       allowed,
	}
}
