package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/staneins/SokrytBot/internal/bot"
	"github.com/staneins/SokrytBot/internal/db"
	"github.com/staneins/SokrytBot/internal/i18n"
	"github.com/staneins/SokrytBot/internal/infra/reg"
)

// Moderator is the update-chain stage that turns admin commands, keyword
// hits and membership changes into ledger mutations and chat replies.
type Moderator struct {
	s      bot.Service
	warden *Warden
	admins *AdminCache
	roster *BannedRoster
	logger *log.Entry
}

func NewModerator(s bot.Service, warden *Warden, admins *AdminCache, roster *BannedRoster) *Moderator {
	return &Moderator{
		s:      s,
		warden: warden,
		admins: admins,
		roster: roster,
		logger: log.WithField("object", "Moderator"),
	}
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.CallbackQuery != nil {
		if strings.HasPrefix(u.CallbackQuery.Data, unmuteCallback+":") {
			m.handleUnmuteCallback(ctx, u.CallbackQuery, user)
			return false, nil
		}
		return true, nil
	}

	msg := u.Message
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}
	lang := m.s.GetLanguage(ctx, chat.ID)

	if msg.LeftChatMember != nil {
		m.bidFarewell(ctx, chat.ID, msg.LeftChatMember, lang)
		return false, nil
	}

	if err := m.s.GetDB().InsertMemberIfAbsent(ctx, &db.ChatMember{
		ChatID:    chat.ID,
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		UserName:  user.UserName,
	}); err != nil {
		m.logger.WithError(err).WithField("chat_id", chat.ID).Warn("cant register member")
	}

	if msg.IsCommand() {
		return m.handleCommand(ctx, msg, chat, user, lang)
	}

	return m.handleKeywords(ctx, msg, chat, user, lang)
}

func (m *Moderator) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	command := msg.Command()
	if !tool.In(command,
		"ban", "mute", "unmute", "warn", "check", "reset", "update",
		"keywords", "wipekeywords", "setwelcome", "setrecurrent",
	) {
		return true, nil
	}

	if !m.admins.IsAdmin(ctx, chat.ID, user.ID) {
		m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgAdminsOnly, lang), "")
		return false, nil
	}

	entry := m.logger.WithFields(log.Fields{"chat_id": chat.ID, "command": command})

	switch command {
	case "update":
		m.admins.Refresh(ctx, chat.ID)
		m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgAdminsRefreshed, lang), "")
		return false, nil
	case "keywords":
		m.handleKeywordsCommand(ctx, msg, chat, lang)
		return false, nil
	case "wipekeywords":
		if err := m.s.GetDB().ClearKeywords(ctx, chat.ID); err != nil {
			entry.WithError(err).Error("cant clear keywords")
			return false, nil
		}
		m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgKeywordsWiped, lang), "")
		return false, nil
	case "setwelcome":
		m.setChatText(ctx, msg, chat, lang, false)
		return false, nil
	case "setrecurrent":
		m.setChatText(ctx, msg, chat, lang, true)
		return false, nil
	}

	// The remaining commands act on the author of the replied-to message.
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgReplyRequired, lang), "")
		return false, nil
	}
	target := msg.ReplyToMessage.From
	targetMention := mention(target.ID, bot.GetFullName(target))

	switch command {
	case "warn":
		res, err := m.warden.Warn(ctx, chat.ID, target)
		switch {
		case err == ErrTargetAdmin:
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgCantBanAdmin, lang), "")
		case err == ErrAlreadyBanned:
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgAlreadyBanned, lang), "")
		case err != nil:
			entry.WithError(err).Error("warn failed")
		case res.Banned:
			m.reply(ctx, chat.ID, 0, targetMention+" "+i18n.Get(msgBanned, lang), api.ModeHTML)
		default:
			text := fmt.Sprintf(i18n.Get(msgWarned, lang), res.Count, res.Limit)
			m.reply(ctx, chat.ID, 0, targetMention+" "+text, api.ModeHTML)
		}
	case "ban":
		err := m.warden.Ban(ctx, chat.ID, target)
		switch {
		case err == ErrTargetAdmin:
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgCantBanAdmin, lang), "")
		case err == ErrAlreadyBanned:
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgAlreadyBanned, lang), "")
		case err != nil:
			entry.WithError(err).Error("ban failed")
		default:
			m.reply(ctx, chat.ID, 0, targetMention+" "+i18n.Get(msgBanned, lang), api.ModeHTML)
		}
	case "mute":
		err := m.warden.Mute(ctx, chat.ID, target, SourceCommand)
		switch {
		case err == ErrTargetAdmin:
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgCantMuteAdmin, lang), "")
		case err != nil:
			entry.WithError(err).Error("mute failed")
		default:
			m.sendMuteNotice(ctx, chat.ID, target, lang)
		}
	case "unmute":
		if err := m.warden.Unmute(ctx, chat.ID, target.ID); err != nil {
			entry.WithError(err).Error("unmute failed")
			break
		}
		m.reply(ctx, chat.ID, 0, targetMention+" "+i18n.Get(msgUnmuted, lang), api.ModeHTML)
	case "check":
		count, err := m.warden.Check(ctx, chat.ID, target.ID)
		if err != nil {
			entry.WithError(err).Error("check failed")
			break
		}
		text := fmt.Sprintf(i18n.Get(msgWarnCount, lang), count, m.warden.warnLimit)
		m.reply(ctx, chat.ID, msg.MessageID, text, "")
	case "reset":
		if err := m.warden.Reset(ctx, chat.ID, target); err != nil {
			entry.WithError(err).Error("reset failed")
			break
		}
		m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgWarnsReset, lang), "")
	}
	return false, nil
}

func (m *Moderator) handleKeywordsCommand(ctx context.Context, msg *api.Message, chat *api.Chat, lang string) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		keywords, err := m.s.GetDB().GetKeywords(ctx, chat.ID)
		if err != nil {
			m.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant get keywords")
			return
		}
		if len(keywords) == 0 {
			m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgKeywordsEmpty, lang), "")
			return
		}
		m.reply(ctx, chat.ID, msg.MessageID, strings.Join(keywords, ", "), "")
		return
	}

	keywords := make([]string, 0)
	for _, part := range strings.Split(args, ",") {
		keyword := strings.ToLower(strings.TrimSpace(part))
		if keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	if err := m.s.GetDB().SetKeywords(ctx, chat.ID, keywords); err != nil {
		m.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant save keywords")
		return
	}
	m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(msgKeywordsSaved, lang), "")
}

func (m *Moderator) setChatText(ctx context.Context, msg *api.Message, chat *api.Chat, lang string, recurrent bool) {
	text := strings.TrimSpace(msg.CommandArguments())
	cfg, err := m.s.GetChatConfig(ctx, chat.ID)
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant get chat config")
		return
	}
	if cfg == nil {
		cfg = &db.ChatConfig{ChatID: chat.ID, Title: chat.Title}
	}
	confirmation := msgWelcomeSaved
	if recurrent {
		cfg.RecurrentText = text
		confirmation = msgRecurrentSaved
	} else {
		cfg.WelcomeText = text
	}
	if err := m.s.GetDB().SetChatConfig(ctx, cfg); err != nil {
		m.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant save chat config")
		return
	}
	reg.Get().SetChatConfig(cfg)
	m.reply(ctx, chat.ID, msg.MessageID, i18n.Get(confirmation, lang), "")
}

// handleKeywords mutes the sender of a message containing a configured
// trigger word. Administrators are exempt.
func (m *Moderator) handleKeywords(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, lang string) (bool, error) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return true, nil
	}

	keywords, err := m.s.GetDB().GetKeywords(ctx, chat.ID)
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant get keywords")
		return true, nil
	}
	lowered := strings.ToLower(text)
	matched := false
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			matched = true
			break
		}
	}
	if !matched {
		return true, nil
	}
	if m.admins.IsAdmin(ctx, chat.ID, user.ID) {
		return true, nil
	}

	if err := m.warden.Mute(ctx, chat.ID, user, SourceTrigger); err != nil {
		if err != ErrTargetAdmin {
			m.logger.WithError(err).WithFields(log.Fields{"chat_id": chat.ID, "user_id": user.ID}).
				Error("keyword mute failed")
		}
		return false, nil
	}
	m.sendMuteNotice(ctx, chat.ID, user, lang)
	return false, nil
}

func (m *Moderator) sendMuteNotice(ctx context.Context, chatID int64, target *api.User, lang string) {
	name := bot.GetFullName(target)
	text := mention(target.ID, name) + " " + i18n.Get(msgMuted, lang)
	payload := fmt.Sprintf("%s:%d:%d:%s", unmuteCallback, chatID, target.ID, name)
	_, err := m.s.GetOps().SendMessage(ctx, chatID, text, bot.SendOptions{
		ParseMode: api.ModeHTML,
		Buttons:   []bot.Button{{Text: i18n.Get(msgUnmuteButton, lang), Data: payload}},
	})
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Error("cant send mute notice")
	}
}

func (m *Moderator) bidFarewell(ctx context.Context, chatID int64, left *api.User, lang string) {
	if left.IsBot || m.roster.Contains(left.ID) {
		return
	}
	text := mention(left.ID, bot.GetFullName(left)) + ", " + i18n.Get(msgFarewell, lang)
	m.reply(ctx, chatID, 0, text, api.ModeHTML)
}

// handleUnmuteCallback lifts restrictions when an administrator presses the
// button attached to a mute notice. Payload: UNMUTE_BUTTON:<chat>:<user>:<name>.
func (m *Moderator) handleUnmuteCallback(ctx context.Context, cq *api.CallbackQuery, presser *api.User) {
	if presser == nil {
		return
	}
	parts := strings.SplitN(cq.Data, ":", 4)
	if len(parts) != 4 {
		m.logger.WithField("data", cq.Data).Warn("malformed unmute payload")
		m.answerCallback(ctx, cq.ID, "")
		return
	}
	chatID, errChat := strconv.ParseInt(parts[1], 10, 64)
	userID, errUser := strconv.ParseInt(parts[2], 10, 64)
	if errChat != nil || errUser != nil {
		m.logger.WithField("data", cq.Data).Warn("malformed unmute payload")
		m.answerCallback(ctx, cq.ID, "")
		return
	}
	name := parts[3]
	lang := m.s.GetLanguage(ctx, chatID)

	if !m.admins.IsAdmin(ctx, chatID, presser.ID) {
		m.answerCallback(ctx, cq.ID, i18n.Get(msgAdminsOnly, lang))
		return
	}

	if err := m.warden.Unmute(ctx, chatID, userID); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{"chat_id": chatID, "user_id": userID}).
			Error("callback unmute failed")
		m.answerCallback(ctx, cq.ID, "")
		return
	}

	if cq.Message != nil {
		text := mention(userID, name) + " " + i18n.Get(msgUnmuted, lang)
		if err := m.s.GetOps().EditMessage(ctx, chatID, cq.Message.MessageID, text, api.ModeHTML); err != nil {
			m.logger.WithError(err).WithField("chat_id", chatID).Error("cant edit mute notice")
		}
	}
	m.answerCallback(ctx, cq.ID, "")
}

func (m *Moderator) answerCallback(ctx context.Context, callbackID, text string) {
	if err := m.s.GetOps().AnswerCallback(ctx, callbackID, text); err != nil {
		m.logger.WithError(err).Warn("cant answer callback")
	}
}

func (m *Moderator) reply(ctx context.Context, chatID int64, replyTo int, text, parseMode string) {
	_, err := m.s.GetOps().SendMessage(ctx, chatID, text, bot.SendOptions{
		ReplyTo:   replyTo,
		ParseMode: parseMode,
	})
	if err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Error("cant send message")
	}
}
