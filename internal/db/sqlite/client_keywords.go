package sqlite

import (
	"context"
)

func (c *sqliteClient) GetKeywords(ctx context.Context, chatID int64) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var keywords []string
	err := c.db.SelectContext(ctx, &keywords, `SELECT keyword FROM keywords WHERE chat_id = ? ORDER BY keyword`, chatID)
	return keywords, err
}

// SetKeywords replaces the chat's keyword set wholesale.
func (c *sqliteClient) SetKeywords(ctx context.Context, chatID int64, keywords []string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE chat_id = ?`, chatID); err != nil {
		return err
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT OR IGNORE INTO keywords (chat_id, keyword) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, keyword := range keywords {
		if _, err := stmt.ExecContext(ctx, chatID, keyword); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *sqliteClient) ClearKeywords(ctx context.Context, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM keywords WHERE chat_id = ?`, chatID)
	return err
}
