// Package store defines the persistence contract for the ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache) and in-memory (for testing).
//
// Every entity is a Record addressed by (Kind, ID). Records that belong to a
// chain carry their owner's ID as Parent and their chain position as Seq so
// histories can be scanned in order.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Kind names an entity type.
type Kind string

const (
	KindAccount          Kind = "account"
	KindVault            Kind = "vault"
	KindPosition         Kind = "position"
	KindPositionSnapshot Kind = "position_snapshot"
	KindPositionLeg      Kind = "position_leg"
	KindVaultSnapshot    Kind = "vault_snapshot"
	KindVaultDay         Kind = "vault_day"
	KindStrategy         Kind = "strategy"
	KindStrategyReport   Kind = "strategy_report"
	KindReportResult     Kind = "report_result"
	KindFeeTotals        Kind = "fee_totals"
	KindTokenFees        Kind = "token_fees"
	KindDeposit          Kind = "deposit"
	KindWithdrawal       Kind = "withdrawal"
	KindTransfer         Kind = "transfer"
	KindEvent            Kind = "event"
)

var (
	// ErrTxClosed is returned when a committed Tx is reused.
	ErrTxClosed = errors.New("store: transaction already committed")
)

// Record is one persisted entity.
type Record struct {
	Kind   Kind            `json:"kind"`
	ID     string          `json:"id"`
	Parent string          `json:"parent,omitempty"`
	Seq    int64           `json:"seq"`
	Body   json.RawMessage `json:"body"`
}

// Backend is the persistence interface. Apply must be atomic: either every
// record of the batch is upserted or none is.
type Backend interface {
	// Load retrieves a record. The bool is false when it does not exist.
	Load(ctx context.Context, kind Kind, id string) (Record, bool, error)

	// Scan returns every record of kind owned by parent, ordered by Seq.
	Scan(ctx context.Context, kind Kind, parent string) ([]Record, error)

	// Apply upserts a batch of records atomically.
	Apply(ctx context.Context, records []Record) error
}

// Store gives typed access to a Backend.
type Store struct {
	backend Backend
}

// New creates a store over a backend.
func New(b Backend) *Store {
	return &Store{backend: b}
}

// Begin opens a unit of work. Reads see the backend plus the Tx's own
// staged writes; nothing reaches the backend until Commit.
func (s *Store) Begin() *Tx {
	return &Tx{
		backend: s.backend,
		staged:  make(map[recordKey]int),
	}
}

// Commit applies every record staged in tx as one atomic batch.
func (s *Store) Commit(ctx context.Context, tx *Tx) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	if len(tx.writes) == 0 {
		return nil
	}
	return s.backend.Apply(ctx, tx.writes)
}
