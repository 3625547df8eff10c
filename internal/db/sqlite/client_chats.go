package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/staneins/SokrytBot/internal/db"
)

func (c *sqliteClient) GetChatConfig(ctx context.Context, chatID int64) (*db.ChatConfig, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var cfg db.ChatConfig
	err := c.db.GetContext(ctx, &cfg, `
		SELECT chat_id, title, language, welcome_text, recurrent_text
		FROM chat_configs
		WHERE chat_id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (c *sqliteClient) SetChatConfig(ctx context.Context, cfg *db.ChatConfig) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chat_configs (chat_id, title, language, welcome_text, recurrent_text)
		VALUES (:chat_id, :title, :language, :welcome_text, :recurrent_text)
		ON CONFLICT(chat_id) DO UPDATE SET
			title = excluded.title,
			language = excluded.language,
			welcome_text = excluded.welcome_text,
			recurrent_text = excluded.recurrent_text
	`
	_, err := c.db.NamedExecContext(ctx, query, cfg)
	return err
}

func (c *sqliteClient) GetChatConfigsWithRecurrentText(ctx context.Context) ([]*db.ChatConfig, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var configs []*db.ChatConfig
	err := c.db.SelectContext(ctx, &configs, `
		SELECT chat_id, title, language, welcome_text, recurrent_text
		FROM chat_configs
		WHERE recurrent_text != ''
	`)
	return configs, err
}
