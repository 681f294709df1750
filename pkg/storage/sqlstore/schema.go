package sqlstore

const (
	entriesTable = "chat_entries"
	stateTable   = "chat_state"
)

// schema is valid for both SQLite and PostgreSQL. Statements are idempotent
// and run on every open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_entries (
		id VARCHAR(36) PRIMARY KEY,
		chat_id VARCHAR(255) NOT NULL,
		seq INTEGER NOT NULL,
		role VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		complete BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_entries_chat_seq ON chat_entries (chat_id, seq)`,
	`CREATE TABLE IF NOT EXISTS chat_state (
		key VARCHAR(64) PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
