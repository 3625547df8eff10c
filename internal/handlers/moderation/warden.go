package moderation

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/staneins/SokrytBot/internal/db"
	"github.com/staneins/SokrytBot/internal/observability"
)

// ActionSource tags who asked for a moderation action. Both paths go
// through the same authorization check against the target.
type ActionSource string

const (
	SourceCommand ActionSource = "command"
	SourceTrigger ActionSource = "trigger"
)

var (
	ErrTargetAdmin   = errors.New("target is an administrator")
	ErrAlreadyBanned = errors.New("member is already banned")
)

type memberOps interface {
	BanMember(ctx context.Context, chatID, userID int64, until time.Time) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictMember(ctx context.Context, chatID, userID int64) error
}

type wardenStore interface {
	GetMember(ctx context.Context, chatID, userID int64) (*db.ChatMember, error)
	SaveMember(ctx context.Context, member *db.ChatMember) error
	InsertMemberIfAbsent(ctx context.Context, member *db.ChatMember) error
}

// WarnResult reports the ledger state after a warn.
type WarnResult struct {
	Count  int
	Limit  int
	Banned bool
}

// Warden owns the warn/ban ledger. It decides, mutates the stored record
// and issues the remote action; composing the chat response is left to the
// caller.
type Warden struct {
	ops    memberOps
	store  wardenStore
	admins *AdminCache
	roster *BannedRoster

	warnLimit    int
	muteDuration time.Duration

	logger *log.Entry
}

func NewWarden(ops memberOps, store wardenStore, admins *AdminCache, roster *BannedRoster, warnLimit int, muteDuration time.Duration) *Warden {
	return &Warden{
		ops:          ops,
		store:        store,
		admins:       admins,
		roster:       roster,
		warnLimit:    warnLimit,
		muteDuration: muteDuration,
		logger:       log.WithField("object", "Warden"),
	}
}

// Warn increments the target's warn counter. The warn that reaches the
// limit cascades into a ban; the counter is reset to zero only once the
// remote ban succeeded, so a failed ban keeps the history intact.
func (w *Warden) Warn(ctx context.Context, chatID int64, target *api.User) (WarnResult, error) {
	if w.admins.IsAdmin(ctx, chatID, target.ID) {
		return WarnResult{}, ErrTargetAdmin
	}

	member, err := w.ensureMember(ctx, chatID, target)
	if err != nil {
		return WarnResult{}, err
	}
	if member.Banned {
		return WarnResult{}, ErrAlreadyBanned
	}

	count := member.WarnCount() + 1
	if count < w.warnLimit {
		member.SetWarns(count)
		if err := w.store.SaveMember(ctx, member); err != nil {
			return WarnResult{}, errors.Wrap(err, "cant save warn count")
		}
		observability.RecordModerationAction("warn")
		return WarnResult{Count: count, Limit: w.warnLimit}, nil
	}

	if err := w.ops.BanMember(ctx, chatID, target.ID, time.Time{}); err != nil {
		return WarnResult{}, errors.Wrap(err, "cant ban member on final warn")
	}

	member.SetWarns(0)
	member.Banned = true
	if err := w.store.SaveMember(ctx, member); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{"chat_id": chatID, "user_id": target.ID}).
			Error("cant persist ban after final warn")
	}
	w.roster.Remember(target.ID)
	w.roster.Reconcile()
	observability.RecordModerationAction("ban")
	return WarnResult{Count: 0, Limit: w.warnLimit, Banned: true}, nil
}

// Ban issues an explicit ban. Re-banning an already-banned member is a
// no-op surfaced as ErrAlreadyBanned; no duplicate remote call is made.
func (w *Warden) Ban(ctx context.Context, chatID int64, target *api.User) error {
	if w.admins.IsAdmin(ctx, chatID, target.ID) {
		return ErrTargetAdmin
	}

	member, err := w.ensureMember(ctx, chatID, target)
	if err != nil {
		return err
	}
	if member.Banned {
		return ErrAlreadyBanned
	}

	if err := w.ops.BanMember(ctx, chatID, target.ID, time.Time{}); err != nil {
		return errors.Wrap(err, "cant ban member")
	}

	member.Banned = true
	if err := w.store.SaveMember(ctx, member); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{"chat_id": chatID, "user_id": target.ID}).
			Error("cant persist ban flag")
	}
	w.roster.Remember(target.ID)
	w.roster.Reconcile()
	observability.RecordModerationAction("ban")
	return nil
}

// Check reports the current warn count. An absent record reads as zero and
// is not persisted.
func (w *Warden) Check(ctx context.Context, chatID, userID int64) (int, error) {
	member, err := w.store.GetMember(ctx, chatID, userID)
	if err != nil {
		return 0, errors.Wrap(err, "cant get member")
	}
	if member == nil {
		return 0, nil
	}
	return member.WarnCount(), nil
}

func (w *Warden) Reset(ctx context.Context, chatID int64, target *api.User) error {
	member, err := w.ensureMember(ctx, chatID, target)
	if err != nil {
		return err
	}
	member.SetWarns(0)
	if err := w.store.SaveMember(ctx, member); err != nil {
		return errors.Wrap(err, "cant reset warn count")
	}
	observability.RecordModerationAction("reset")
	return nil
}

// Mute restricts the target for the configured duration. Re-muting simply
// re-applies the same window.
func (w *Warden) Mute(ctx context.Context, chatID int64, target *api.User, source ActionSource) error {
	if w.admins.IsAdmin(ctx, chatID, target.ID) {
		return ErrTargetAdmin
	}

	if err := w.ops.RestrictMember(ctx, chatID, target.ID, time.Now().Add(w.muteDuration)); err != nil {
		return errors.Wrap(err, "cant restrict member")
	}
	observability.RecordModerationAction("mute_" + string(source))
	return nil
}

func (w *Warden) Unmute(ctx context.Context, chatID, userID int64) error {
	if err := w.ops.UnrestrictMember(ctx, chatID, userID); err != nil {
		return errors.Wrap(err, "cant unrestrict member")
	}
	observability.RecordModerationAction("unmute")
	return nil
}

// ensureMember registers the target on demand. An existing record is never
// overwritten by registration.
func (w *Warden) ensureMember(ctx context.Context, chatID int64, target *api.User) (*db.ChatMember, error) {
	err := w.store.InsertMemberIfAbsent(ctx, &db.ChatMember{
		ChatID:    chatID,
		UserID:    target.ID,
		FirstName: target.FirstName,
		LastName:  target.LastName,
		UserName:  target.UserName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cant register member")
	}
	member, err := w.store.GetMember(ctx, chatID, target.ID)
	if err != nil {
		return nil, errors.Wrap(err, "cant get member")
	}
	if member == nil {
		return nil, errors.New("member missing after registration")
	}
	return member, nil
}
