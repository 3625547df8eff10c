package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/staneins/SokrytBot/internal/config"
	"github.com/staneins/SokrytBot/internal/db"
	"github.com/staneins/SokrytBot/internal/infra/reg"
)

// ServiceBot defines bot-specific operations
type ServiceBot interface {
	GetBot() *api.BotAPI
	GetOps() ChatOps
}

// ServiceDB defines database-specific operations
type ServiceDB interface {
	GetDB() db.Client
}

// Service defines the core bot service interface
type Service interface {
	ServiceBot
	ServiceDB
	GetChatConfig(ctx context.Context, chatID int64) (*db.ChatConfig, error)
	GetLanguage(ctx context.Context, chatID int64) string
}

type service struct {
	bot *api.BotAPI
	ops ChatOps
	db  db.Client
}

func NewService(botAPI *api.BotAPI, ops ChatOps, client db.Client) *service {
	return &service{
		bot: botAPI,
		ops: ops,
		db:  client,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetOps() ChatOps {
	return s.ops
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetChatConfig answers from the process-lifetime registry cache first and
// falls back to storage. A missing row yields nil, not an error.
func (s *service) GetChatConfig(ctx context.Context, chatID int64) (*db.ChatConfig, error) {
	if cached := reg.Get().GetChatConfig(chatID); cached != nil {
		return cached, nil
	}
	cfg, err := s.db.GetChatConfig(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		reg.Get().SetChatConfig(cfg)
	}
	return cfg, nil
}

func (s *service) GetLanguage(ctx context.Context, chatID int64) string {
	cfg, err := s.GetChatConfig(ctx, chatID)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("cant get chat config for language")
	}
	if lang := cfg.GetLanguage(); lang != "" {
		return lang
	}
	return config.Get().DefaultLanguage
}
