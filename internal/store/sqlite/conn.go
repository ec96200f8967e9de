package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS vaults (
    vault_id   TEXT PRIMARY KEY,
    vault_type TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS memberships (
    vault_id  TEXT NOT NULL,
    user_id   TEXT NOT NULL,
    joined_at TIMESTAMP NOT NULL,
    PRIMARY KEY (vault_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);
CREATE TABLE IF NOT EXISTS queue (
    envelope_id TEXT NOT NULL,
    recipient   TEXT NOT NULL,
    vault_id    TEXT NOT NULL,
    sender_id   TEXT NOT NULL,
    ts          INTEGER NOT NULL,
    payload     BLOB NOT NULL,
    queued_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (envelope_id, recipient)
);
CREATE INDEX IF NOT EXISTS idx_queue_recipient ON queue(recipient, ts);
CREATE TABLE IF NOT EXISTS prekeys (
    user_id    TEXT PRIMARY KEY,
    bundle     BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Open opens (or creates) a SQLite database at the given path, enables WAL
// journal mode, and bootstraps the relay schema.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
