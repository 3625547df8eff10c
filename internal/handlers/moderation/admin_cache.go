package moderation

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type adminLister interface {
	GetChatAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}

// AdminCache keeps the per-chat administrator sets used for authorization.
// Entries are replaced wholesale on refresh and populated lazily on first
// query. Staleness between refreshes is accepted.
type AdminCache struct {
	lister adminLister
	selfID int64

	mutex  sync.RWMutex
	admins map[int64]map[int64]struct{}

	logger *log.Entry
}

func NewAdminCache(lister adminLister, selfID int64) *AdminCache {
	return &AdminCache{
		lister: lister,
		selfID: selfID,
		admins: make(map[int64]map[int64]struct{}),
		logger: log.WithField("object", "AdminCache"),
	}
}

// Refresh replaces the cached set for the chat. A transport failure keeps
// the previous entry and is logged, not returned.
func (c *AdminCache) Refresh(ctx context.Context, chatID int64) {
	ids, err := c.lister.GetChatAdministrators(ctx, chatID)
	if err != nil {
		c.logger.WithError(err).WithField("chat_id", chatID).Error("cant refresh administrators")
		return
	}

	set := make(map[int64]struct{}, len(ids)+1)
	for _, id := range ids {
		set[id] = struct{}{}
	}
	set[c.selfID] = struct{}{}

	c.mutex.Lock()
	c.admins[chatID] = set
	c.mutex.Unlock()
}

// IsAdmin answers from the cache, fetching the chat's administrator list
// once if the chat has never been seen.
func (c *AdminCache) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	if userID == c.selfID {
		return true
	}

	c.mutex.RLock()
	set, ok := c.admins[chatID]
	c.mutex.RUnlock()

	if !ok {
		c.Refresh(ctx, chatID)
		c.mutex.RLock()
		set = c.admins[chatID]
		c.mutex.RUnlock()
	}

	_, isAdmin := set[userID]
	return isAdmin
}
