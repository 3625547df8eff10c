package announce

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/staneins/SokrytBot/internal/bot"
	"github.com/staneins/SokrytBot/internal/db"
)

type announceStore interface {
	GetChatConfigsWithRecurrentText(ctx context.Context) ([]*db.ChatConfig, error)
}

type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts bot.SendOptions) (int, error)
}

// Announcer periodically re-posts each chat's configured recurrent text.
type Announcer struct {
	store    announceStore
	ops      sender
	interval time.Duration

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup

	logger *log.Entry
}

func NewAnnouncer(store announceStore, ops sender, interval time.Duration) *Announcer {
	return &Announcer{
		store:    store,
		ops:      ops,
		interval: interval,
		logger:   log.WithField("object", "Announcer"),
	}
}

func (a *Announcer) Start(ctx context.Context) error {
	a.runMutex.Lock()
	defer a.runMutex.Unlock()
	if a.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.workersWg.Add(1)
	go func() {
		defer a.workersWg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				a.broadcast(runCtx)
			}
		}
	}()

	a.started = true
	return nil
}

func (a *Announcer) Stop(ctx context.Context) error {
	a.runMutex.Lock()
	defer a.runMutex.Unlock()
	if !a.started {
		return nil
	}
	a.runCancel()
	a.workersWg.Wait()
	a.started = false
	return nil
}

func (a *Announcer) broadcast(ctx context.Context) {
	configs, err := a.store.GetChatConfigsWithRecurrentText(ctx)
	if err != nil {
		a.logger.WithError(err).Error("cant get recurrent texts")
		return
	}
	for _, cfg := range configs {
		if _, err := a.ops.SendMessage(ctx, cfg.ChatID, cfg.RecurrentText, bot.SendOptions{DisableNotification: true}); err != nil {
			a.logger.WithError(err).WithField("chat_id", cfg.ChatID).Error("cant send recurrent text")
		}
	}
}
