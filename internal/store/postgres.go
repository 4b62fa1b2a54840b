package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend implements Backend using PostgreSQL as the source of truth.
// Entities live in one table keyed by (kind, id) with a JSONB body; amounts
// inside the body are decimal strings so no precision is lost.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a new PostgreSQL-backed store.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entities (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	parent     TEXT        NOT NULL DEFAULT '',
	seq        BIGINT      NOT NULL DEFAULT 0,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS ledger_entities_chain ON ledger_entities (kind, parent, seq);
`

// EnsureSchema creates the entity table if it does not exist.
func (s *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresBackend) Load(ctx context.Context, kind Kind, id string) (Record, bool, error) {
	rec := Record{Kind: kind, ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT parent, seq, body FROM ledger_entities WHERE kind = $1 AND id = $2`,
		string(kind), id).
		Scan(&rec.Parent, &rec.Seq, &rec.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return rec, true, nil
}

func (s *PostgresBackend) Scan(ctx context.Context, kind Kind, parent string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, body FROM ledger_entities
		 WHERE kind = $1 AND parent = $2 ORDER BY seq, id`,
		string(kind), parent)
	if err != nil {
		return nil, fmt.Errorf("scan %s %s: %w", kind, parent, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Kind: kind, Parent: parent}
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Body); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Apply upserts the batch inside one database transaction.
func (s *PostgresBackend) Apply(ctx context.Context, records []Record) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(
				`INSERT INTO ledger_entities (kind, id, parent, seq, body, updated_at)
				 VALUES ($1, $2, $3, $4, $5::JSONB, now())
				 ON CONFLICT (kind, id) DO UPDATE
				 SET parent = EXCLUDED.parent, seq = EXCLUDED.seq,
				     body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
				string(rec.Kind), rec.ID, rec.Parent, rec.Seq, string(rec.Body),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("apply %d records: %w", len(records), err)
		}
		return nil
	})
}
