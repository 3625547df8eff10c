package reg

import (
	"sync"

	"github.com/staneins/SokrytBot/internal/db"
)

type registry struct {
	mu      sync.RWMutex
	ccCache map[int64]*db.ChatConfig
}

var instance *registry
var once sync.Once

func Get() *registry {
	once.Do(func() {
		instance = &registry{
			ccCache: map[int64]*db.ChatConfig{},
		}
	})
	return instance
}

func (r *registry) GetChatConfig(chatID int64) *db.ChatConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ccCache[chatID]
}

func (r *registry) SetChatConfig(cfg *db.ChatConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ccCache[cfg.ChatID] = cfg
}

func (r *registry) RemoveChatConfig(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ccCache, chatID)
}
