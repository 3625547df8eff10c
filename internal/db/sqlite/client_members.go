package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/staneins/SokrytBot/internal/db"
)

func (c *sqliteClient) GetMember(ctx context.Context, chatID, userID int64) (*db.ChatMember, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var member db.ChatMember
	err := c.db.GetContext(ctx, &member, `
		SELECT chat_id, user_id, first_name, last_name, username, warns, banned
		FROM members
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (c *sqliteClient) SaveMember(ctx context.Context, member *db.ChatMember) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO members (chat_id, user_id, first_name, last_name, username, warns, banned)
		VALUES (:chat_id, :user_id, :first_name, :last_name, :username, :warns, :banned)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			warns = excluded.warns,
			banned = excluded.banned
	`
	_, err := c.db.NamedExecContext(ctx, query, member)
	return err
}

// InsertMemberIfAbsent registers a member on first interaction. An existing
// record is left untouched, warn count and ban flag included.
func (c *sqliteClient) InsertMemberIfAbsent(ctx context.Context, member *db.ChatMember) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT OR IGNORE INTO members (chat_id, user_id, first_name, last_name, username, warns, banned)
		VALUES (:chat_id, :user_id, :first_name, :last_name, :username, :warns, :banned)
	`
	_, err := c.db.NamedExecContext(ctx, query, member)
	return err
}
