package moderation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// BannedRoster is the transient memory of users banned during the current
// cleanup episode, together with the periodic task that clears it. The set
// and the scheduler state share one mutex so a tick can never race a
// concurrent start or stop decision.
type BannedRoster struct {
	interval time.Duration

	mutex   sync.Mutex
	users   map[int64]struct{}
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	logger *log.Entry
}

func NewBannedRoster(interval time.Duration) *BannedRoster {
	return &BannedRoster{
		interval: interval,
		users:    make(map[int64]struct{}),
		logger:   log.WithField("object", "BannedRoster"),
	}
}

// Remember records a freshly banned user. The caller follows up with
// Reconcile once the triggering event is fully handled.
func (r *BannedRoster) Remember(userID int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.users[userID] = struct{}{}
}

// Reconcile re-checks the scheduler against the set: empty stops it,
// non-empty keeps it running. Both directions are idempotent.
func (r *BannedRoster) Reconcile() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.users) == 0 {
		r.stopLocked()
		return
	}
	r.startLocked()
}

func (r *BannedRoster) Contains(userID int64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.users[userID]
	return ok
}

func (r *BannedRoster) Running() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.running
}

// Start satisfies the lifecycle contract. The cleanup ticker itself starts
// lazily on the first Reconcile after a ban, so there is nothing to bring
// up here.
func (r *BannedRoster) Start(ctx context.Context) error {
	return nil
}

// Stop halts the cleanup ticker and drops any remembered users. Stopping an
// already-stopped roster is a no-op.
func (r *BannedRoster) Stop(ctx context.Context) error {
	r.mutex.Lock()
	r.stopLocked()
	r.users = make(map[int64]struct{})
	r.mutex.Unlock()

	r.wg.Wait()
	return nil
}

func (r *BannedRoster) stopLocked() {
	if !r.running {
		return
	}
	close(r.stop)
	r.running = false
}

func (r *BannedRoster) startLocked() {
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})

	r.wg.Add(1)
	go func(stop chan struct{}) {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.mutex.Lock()
				cleared := len(r.users)
				r.users = make(map[int64]struct{})
				// The set is empty now, so the episode is over and the
				// ticker stops with it.
				r.running = false
				r.mutex.Unlock()

				if cleared > 0 {
					r.logger.WithField("cleared", cleared).Debug("cleanup tick")
				}
				return
			}
		}
	}(r.stop)
}
