package chat

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/staneins/SokrytBot/internal/bot"
	"github.com/staneins/SokrytBot/internal/handlers/moderation"
	"github.com/staneins/SokrytBot/internal/i18n"
	"github.com/staneins/SokrytBot/internal/observability"
)

const (
	confirmCallback = "CONFIRM_BUTTON"

	msgCaptchaPrompt = "нажмите кнопку в течение 3-х минут, чтобы войти в чат"
	msgCaptchaButton = "Я не бот"
	msgWelcome       = "Добро пожаловать"

	// A kick is a ban that lapses almost immediately, leaving the user
	// free to rejoin.
	kickBanWindow = time.Minute
)

type pendingKey struct {
	chatID int64
	userID int64
}

type pendingJoiner struct {
	user       *api.User
	confirmed  bool
	promptID   int
	messageIDs []int
}

// Gatekeeper runs the join-time human check: new members get a prompt with
// a confirmation button and a fixed window to press it, or they are kicked
// and their interim messages removed.
type Gatekeeper struct {
	s       bot.Service
	roster  *moderation.BannedRoster
	timeout time.Duration
	selfID  int64

	mutex   sync.Mutex
	pending map[pendingKey]*pendingJoiner

	// after schedules the expiry check; swapped out in tests.
	after func(d time.Duration, fn func())

	logger *log.Entry
}

func NewGatekeeper(s bot.Service, roster *moderation.BannedRoster, timeout time.Duration, selfID int64) *Gatekeeper {
	return &Gatekeeper{
		s:       s,
		roster:  roster,
		timeout: timeout,
		selfID:  selfID,
		pending: make(map[pendingKey]*pendingJoiner),
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		logger: log.WithField("object", "Gatekeeper"),
	}
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.CallbackQuery != nil {
		if strings.HasPrefix(u.CallbackQuery.Data, confirmCallback+":") {
			g.handleConfirm(ctx, u.CallbackQuery, chat, user)
			return false, nil
		}
		return true, nil
	}

	msg := u.Message
	if msg == nil || chat == nil {
		return true, nil
	}

	if len(msg.NewChatMembers) > 0 {
		g.handleJoins(ctx, chat, msg.NewChatMembers)
		return false, nil
	}

	if user != nil {
		g.recordInterimMessage(chat.ID, user.ID, msg.MessageID)
	}
	return true, nil
}

func (g *Gatekeeper) handleJoins(ctx context.Context, chat *api.Chat, joiners []api.User) {
	for i := range joiners {
		if joiners[i].ID == g.selfID {
			// The bot was added to the chat itself; nobody gets gated on
			// this event.
			g.logger.WithField("chat_id", chat.ID).Info("joined chat")
			return
		}
	}

	lang := g.s.GetLanguage(ctx, chat.ID)
	for i := range joiners {
		joiner := joiners[i]
		if joiner.IsBot {
			continue
		}
		g.startCaptcha(ctx, chat.ID, &joiner, lang)
	}
}

func (g *Gatekeeper) startCaptcha(ctx context.Context, chatID int64, joiner *api.User, lang string) {
	entry := g.logger.WithFields(log.Fields{"chat_id": chatID, "user_id": joiner.ID})

	text := mention(joiner) + ", " + i18n.Get(msgCaptchaPrompt, lang)
	promptID, err := g.s.GetOps().SendMessage(ctx, chatID, text, bot.SendOptions{
		ParseMode: api.ModeHTML,
		Buttons: []bot.Button{{
			Text: i18n.Get(msgCaptchaButton, lang),
			Data: fmt.Sprintf("%s:%d", confirmCallback, joiner.ID),
		}},
	})
	if err != nil {
		entry.WithError(err).Error("cant send captcha prompt")
		return
	}

	key := pendingKey{chatID: chatID, userID: joiner.ID}
	g.mutex.Lock()
	g.pending[key] = &pendingJoiner{user: joiner, promptID: promptID}
	g.mutex.Unlock()

	entry.Debug("captcha armed")
	g.after(g.timeout, func() {
		g.expire(key)
	})
}

// handleConfirm flips the pending flag when the joiner presses their own
// button. A press by anyone else is ignored, a malformed payload dropped.
func (g *Gatekeeper) handleConfirm(ctx context.Context, cq *api.CallbackQuery, chat *api.Chat, presser *api.User) {
	if chat == nil || presser == nil {
		return
	}
	targetID, err := strconv.ParseInt(strings.TrimPrefix(cq.Data, confirmCallback+":"), 10, 64)
	if err != nil {
		g.logger.WithField("data", cq.Data).Warn("malformed confirm payload")
		return
	}
	if presser.ID != targetID {
		g.logger.WithFields(log.Fields{"presser": presser.ID, "target": targetID}).
			Warn("confirm pressed by someone else")
		return
	}

	key := pendingKey{chatID: chat.ID, userID: targetID}
	g.mutex.Lock()
	joiner, ok := g.pending[key]
	if ok {
		joiner.confirmed = true
	}
	g.mutex.Unlock()

	g.answerCallback(ctx, cq.ID, "")
	if !ok {
		return
	}

	lang := g.s.GetLanguage(ctx, chat.ID)
	welcome := i18n.Get(msgWelcome, lang)
	if cfg, err := g.s.GetChatConfig(ctx, chat.ID); err == nil && cfg != nil && cfg.WelcomeText != "" {
		welcome = cfg.WelcomeText
	}
	text := mention(joiner.user) + ", " + welcome
	if err := g.s.GetOps().EditMessage(ctx, chat.ID, joiner.promptID, text, api.ModeHTML); err != nil {
		g.logger.WithError(err).WithField("chat_id", chat.ID).Error("cant edit captcha prompt")
	}
}

// expire runs at timer fire-time and resolves the state solely from the
// confirmation flag; it never races a cancellation.
func (g *Gatekeeper) expire(key pendingKey) {
	g.mutex.Lock()
	joiner, ok := g.pending[key]
	if !ok {
		g.mutex.Unlock()
		return
	}
	delete(g.pending, key)
	if joiner.confirmed {
		g.mutex.Unlock()
		return
	}
	promptID := joiner.promptID
	messageIDs := append([]int(nil), joiner.messageIDs...)
	g.mutex.Unlock()

	ctx := context.Background()
	entry := g.logger.WithFields(log.Fields{"chat_id": key.chatID, "user_id": key.userID})

	if err := g.s.GetOps().BanMember(ctx, key.chatID, key.userID, time.Now().Add(kickBanWindow)); err != nil {
		entry.WithError(err).Error("cant kick unverified joiner")
		return
	}
	g.roster.Remember(key.userID)
	g.roster.Reconcile()
	observability.RecordModerationAction("kick")

	if err := g.s.GetOps().DeleteMessage(ctx, key.chatID, promptID); err != nil {
		entry.WithError(err).Error("cant delete captcha prompt")
	}
	for _, messageID := range messageIDs {
		if err := g.s.GetOps().DeleteMessage(ctx, key.chatID, messageID); err != nil {
			entry.WithError(err).WithField("message_id", messageID).Error("cant delete interim message")
		}
	}
	entry.Info("kicked unverified joiner")
}

func (g *Gatekeeper) recordInterimMessage(chatID, userID int64, messageID int) {
	key := pendingKey{chatID: chatID, userID: userID}
	g.mutex.Lock()
	if joiner, ok := g.pending[key]; ok && !joiner.confirmed {
		joiner.messageIDs = append(joiner.messageIDs, messageID)
	}
	g.mutex.Unlock()
}

func (g *Gatekeeper) answerCallback(ctx context.Context, callbackID, text string) {
	if err := g.s.GetOps().AnswerCallback(ctx, callbackID, text); err != nil {
		g.logger.WithError(err).Warn("cant answer callback")
	}
}

func mention(user *api.User) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, user.ID, html.EscapeString(bot.GetFullName(user)))
}
