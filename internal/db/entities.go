package db

import "database/sql"

type (
	// ChatMember is the durable per-(chat,user) moderation record. The warn
	// counter is nullable: NULL means the user was never warned, which is
	// reported as 0 but never persisted as such.
	ChatMember struct {
		ChatID    int64         `db:"chat_id"`
		UserID    int64         `db:"user_id"`
		FirstName string        `db:"first_name"`
		LastName  string        `db:"last_name"`
		UserName  string        `db:"username"`
		Warns     sql.NullInt64 `db:"warns"`
		Banned    bool          `db:"banned"`
	}

	ChatConfig struct {
		ChatID        int64  `db:"chat_id"`
		Title         string `db:"title"`
		Language      string `db:"language"`
		WelcomeText   string `db:"welcome_text"`
		RecurrentText string `db:"recurrent_text"`
	}
)

func (m *ChatMember) WarnCount() int {
	if m == nil || !m.Warns.Valid {
		return 0
	}
	return int(m.Warns.Int64)
}

func (m *ChatMember) SetWarns(n int) {
	m.Warns = sql.NullInt64{Int64: int64(n), Valid: true}
}

func (c *ChatConfig) GetLanguage() string {
	if c == nil || c.Language == "" {
		return ""
	}
	return c.Language
}
