package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS vaults (
    vault_id   TEXT PRIMARY KEY,
    vault_type TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS memberships (
    vault_id  TEXT NOT NULL,
    user_id   TEXT NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (vault_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);
CREATE TABLE IF NOT EXISTS queue (
    envelope_id TEXT NOT NULL,
    recipient   TEXT NOT NULL,
    vault_id    TEXT NOT NULL,
    sender_id   TEXT NOT NULL,
    ts          BIGINT NOT NULL,
    payload     BYTEA NOT NULL,
    queued_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (envelope_id, recipient)
);
CREATE INDEX IF NOT EXISTS idx_queue_recipient ON queue(recipient, ts);
CREATE TABLE IF NOT EXISTS prekeys (
    user_id    TEXT PRIMARY KEY,
    bundle     BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap creates the relay schema if it does not exist yet.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Vaults() store.Vaults           { return &vaults{db: s.db} }
func (s *pgStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *pgStore) Queues() store.Queues           { return &queues{db: s.db} }
func (s *pgStore) Prekeys() store.Prekeys         { return &prekeys{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Vaults ---

type vaults struct{ db *sql.DB }

func (v *vaults) Ensure(ctx context.Context, in *model.Vault) (*model.Vault, error) {
	if _, err := v.db.ExecContext(ctx, `
        INSERT INTO vaults (vault_id, vault_type) VALUES ($1,$2)
        ON CONFLICT (vault_id) DO NOTHING
    `, in.VaultID, string(in.Type)); err != nil {
		return nil, err
	}
	return v.Get(ctx, in.VaultID)
}

func (v *vaults) Get(ctx context.Context, vaultID string) (*model.Vault, error) {
	var out model.Vault
	var typ string
	row := v.db.QueryRowContext(ctx, `SELECT vault_id, vault_type, created_at FROM vaults WHERE vault_id=$1`, vaultID)
	if err := row.Scan(&out.VaultID, &typ, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.Type = model.VaultType(typ)
	return &out, nil
}

func (v *vaults) Delete(ctx context.Context, vaultID string) error {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE vault_id=$1`, vaultID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vaults WHERE vault_id=$1`, vaultID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Memberships ---

type memberships struct{ db *sql.DB }

func (m *memberships) Add(ctx context.Context, in *model.Membership) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO memberships (vault_id, user_id) VALUES ($1,$2)
        ON CONFLICT (vault_id, user_id) DO NOTHING
    `, in.VaultID, in.UserID)
	return err
}

func (m *memberships) Remove(ctx context.Context, vaultID, userID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM memberships WHERE vault_id=$1 AND user_id=$2`, vaultID, userID)
	return err
}

func (m *memberships) Members(ctx context.Context, vaultID string) ([]*model.Membership, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT vault_id, user_id, joined_at FROM memberships WHERE vault_id=$1 ORDER BY user_id
    `, vaultID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Membership
	for rows.Next() {
		var rec model.Membership
		if err := rows.Scan(&rec.VaultID, &rec.UserID, &rec.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (m *memberships) Count(ctx context.Context, vaultID string) (int, error) {
	var n int
	row := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE vault_id=$1`, vaultID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *memberships) VaultsFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT vault_id FROM memberships WHERE user_id=$1 ORDER BY vault_id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Queues ---

type queues struct{ db *sql.DB }

func (q *queues) Enqueue(ctx context.Context, env *model.Envelope) error {
	queuedAt := env.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
        INSERT INTO queue (envelope_id, recipient, vault_id, sender_id, ts, payload, queued_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (envelope_id, recipient) DO NOTHING
    `, env.EnvelopeID, env.Recipient, env.VaultID, env.SenderID, env.Timestamp, env.Payload, queuedAt)
	return err
}

func (q *queues) Pending(ctx context.Context, recipient string) ([]*model.Envelope, error) {
	rows, err := q.db.QueryContext(ctx, `
        SELECT envelope_id, recipient, vault_id, sender_id, ts, payload, queued_at
        FROM queue WHERE recipient=$1 ORDER BY ts ASC, queued_at ASC
    `, recipient)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Envelope
	for rows.Next() {
		var env model.Envelope
		if err := rows.Scan(&env.EnvelopeID, &env.Recipient, &env.VaultID, &env.SenderID, &env.Timestamp, &env.Payload, &env.QueuedAt); err != nil {
			return nil, err
		}
		out = append(out, &env)
	}
	return out, rows.Err()
}

func (q *queues) Ack(ctx context.Context, recipient, envelopeID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE recipient=$1 AND envelope_id=$2`, recipient, envelopeID)
	return err
}

func (q *queues) Purge(ctx context.Context, recipient string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE recipient=$1`, recipient)
	return err
}

func (q *queues) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE queued_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Prekeys ---

type prekeys struct{ db *sql.DB }

func (p *prekeys) Put(ctx context.Context, b *model.PrekeyBundle) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO prekeys (user_id, bundle, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (user_id) DO UPDATE SET bundle=EXCLUDED.bundle, updated_at=now()
    `, b.UserID, b.Bundle)
	return err
}

func (p *prekeys) Get(ctx context.Context, userID string) (*model.PrekeyBundle, error) {
	var out model.PrekeyBundle
	row := p.db.QueryRowContext(ctx, `SELECT user_id, bundle, updated_at FROM prekeys WHERE user_id=$1`, userID)
	if err := row.Scan(&out.UserID, &out.Bundle, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (p *prekeys) Delete(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM prekeys WHERE user_id=$1`, userID)
	return err
}
