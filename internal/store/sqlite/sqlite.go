package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vaultwire/vaultwire/internal/model"
	"github.com/vaultwire/vaultwire/internal/store"
)

type sqliteStore struct{ db *sql.DB }

// New opens (or creates) a SQLite-backed store at the given path.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wires the store onto an existing connection (used by factory and tests).
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

func (s *sqliteStore) Vaults() store.Vaults           { return &vaults{db: s.db} }
func (s *sqliteStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *sqliteStore) Queues() store.Queues           { return &queues{db: s.db} }
func (s *sqliteStore) Prekeys() store.Prekeys         { return &prekeys{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Vaults ---

type vaults struct{ db *sql.DB }

func (v *vaults) Ensure(ctx context.Context, in *model.Vault) (*model.Vault, error) {
	now := time.Now().UTC()
	if _, err := v.db.ExecContext(ctx, `
        INSERT INTO vaults (vault_id, vault_type, created_at) VALUES (?,?,?)
        ON CONFLICT(vault_id) DO NOTHING
    `, in.VaultID, string(in.Type), now); err != nil {
		return nil, err
	}
	return v.Get(ctx, in.VaultID)
}

func (v *vaults) Get(ctx context.Context, vaultID string) (*model.Vault, error) {
	var out model.Vault
	var typ string
	row := v.db.QueryRowContext(ctx, `SELECT vault_id, vault_type, created_at FROM vaults WHERE vault_id=?`, vaultID)
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE vault_id=?`, vaultID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vaults WHERE vault_id=?`, vaultID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Memberships ---

type memberships struct{ db *sql.DB }

func (m *memberships) Add(ctx context.Context, in *model.Membership) error {
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO memberships (vault_id, user_id, joined_at) VALUES (?,?,?)
        ON CONFLICT(vault_id, user_id) DO NOTHING
    `, in.VaultID, in.UserID, time.Now().UTC())
	return err
}

func (m *memberships) Remove(ctx context.Context, vaultID, userID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM memberships WHERE vault_id=? AND user_id=?`, vaultID, userID)
	return err
}

func (m *memberships) Members(ctx context.Context, vaultID string) ([]*model.Membership, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT vault_id, user_id, joined_at FROM memberships WHERE vault_id=? ORDER BY user_id
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
	row := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE vault_id=?`, vaultID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *memberships) VaultsFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT vault_id FROM memberships WHERE user_id=? ORDER BY vault_id`, userID)
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
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT(envelope_id, recipient) DO NOTHING
    `, env.EnvelopeID, env.Recipient, env.VaultID, env.SenderID, env.Timestamp, env.Payload, queuedAt)
	return err
}

func (q *queues) Pending(ctx context.Context, recipient string) ([]*model.Envelope, error) {
	rows, err := q.db.QueryContext(ctx, `
        SELECT envelope_id, recipient, vault_id, sender_id, ts, payload, queued_at
        FROM queue WHERE recipient=? ORDER BY ts ASC, queued_at ASC
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
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE recipient=? AND envelope_id=?`, recipient, envelopeID)
	return err
}

func (q *queues) Purge(ctx context.Context, recipient string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE recipient=?`, recipient)
	return err
}

func (q *queues) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE queued_at < ?`, olderThan.UTC())
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
        INSERT INTO prekeys (user_id, bundle, updated_at) VALUES (?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET bundle=excluded.bundle, updated_at=excluded.updated_at
    `, b.UserID, b.Bundle, time.Now().UTC())
	return err
}

func (p *prekeys) Get(ctx context.Context, userID string) (*model.PrekeyBundle, error) {
	var out model.PrekeyBundle
	row := p.db.QueryRowContext(ctx, `SELECT user_id, bundle, updated_at FROM prekeys WHERE user_id=?`, userID)
	if err := row.Scan(&out.UserID, &out.Bundle, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (p *prekeys) Delete(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM prekeys WHERE user_id=?`, userID)
	return err
}
