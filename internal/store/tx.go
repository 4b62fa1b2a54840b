package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/model"
)

type recordKey struct {
	kind Kind
	id   string
}

// Tx stages writes for one event. Getters return (entity, found, error);
// a missing entity is never an error.
type Tx struct {
	backend Backend
	staged  map[recordKey]int // index into writes
	writes  []Record
	closed  bool
}

// Staged returns the number of records written so far.
func (tx *Tx) Staged() int { return len(tx.writes) }

func (tx *Tx) load(ctx context.Context, kind Kind, id string) (Record, bool, error) {
	if i, ok := tx.staged[recordKey{kind, id}]; ok {
		return tx.writes[i], true, nil
	}
	return tx.backend.Load(ctx, kind, id)
}

func (tx *Tx) put(kind Kind, id, parent string, seq int64, v any) error {
	if tx.closed {
		return ErrTxClosed
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	rec := Record{Kind: kind, ID: id, Parent: parent, Seq: seq, Body: body}
	k := recordKey{kind, id}
	if i, ok := tx.staged[k]; ok {
		tx.writes[i] = rec
		return nil
	}
	tx.staged[k] = len(tx.writes)
	tx.writes = append(tx.writes, rec)
	return nil
}

func get[T any](ctx context.Context, tx *Tx, kind Kind, id string) (*T, bool, error) {
	rec, ok, err := tx.load(ctx, kind, id)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(rec.Body, &v); err != nil {
		return nil, false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return &v, true, nil
}

// --- Accounts, vaults, strategies ---

func (tx *Tx) Account(ctx context.Context, id ident.Address) (*model.Account, bool, error) {
	return get[model.Account](ctx, tx, KindAccount, ident.EntityID(string(KindAccount), string(id)))
}

func (tx *Tx) PutAccount(a *model.Account) error {
	return tx.put(KindAccount, ident.EntityID(string(KindAccount), string(a.ID)), "", 0, a)
}

func (tx *Tx) Vault(ctx context.Context, id ident.Address) (*model.Vault, bool, error) {
	return get[model.Vault](ctx, tx, KindVault, ident.EntityID(string(KindVault), string(id)))
}

func (tx *Tx) PutVault(v *model.Vault) error {
	return tx.put(KindVault, ident.EntityID(string(KindVault), string(v.ID)), "", 0, v)
}

func (tx *Tx) Strategy(ctx context.Context, id ident.Address) (*model.Strategy, bool, error) {
	return get[model.Strategy](ctx, tx, KindStrategy, ident.EntityID(string(KindStrategy), string(id)))
}

func (tx *Tx) PutStrategy(s *model.Strategy) error {
	return tx.put(KindStrategy, ident.EntityID(string(KindStrategy), string(s.ID)),
		ident.EntityID(string(KindVault), string(s.Vault)), 0, s)
}

// --- Positions ---

func (tx *Tx) Position(ctx context.Context, key ident.PositionKey) (*model.Position, bool, error) {
	return get[model.Position](ctx, tx, KindPosition, key.ID())
}

func (tx *Tx) PutPosition(p *model.Position) error {
	return tx.put(KindPosition, p.Key.ID(), ident.EntityID(string(KindAccount), string(p.Key.Account)), 0, p)
}

func (tx *Tx) PositionSnapshot(ctx context.Context, key ident.SnapshotKey) (*model.PositionSnapshot, bool, error) {
	return get[model.PositionSnapshot](ctx, tx, KindPositionSnapshot, key.ID())
}

func (tx *Tx) PutPositionSnapshot(s *model.PositionSnapshot) error {
	return tx.put(KindPositionSnapshot, s.Key.ID(), s.Key.Position.ID(), int64(s.Key.Order), s)
}

func (tx *Tx) Leg(ctx context.Context, key ident.LegKey) (*model.LegRef, bool, error) {
	return get[model.LegRef](ctx, tx, KindPositionLeg, key.ID())
}

func (tx *Tx) PutLeg(l *model.LegRef) error {
	return tx.put(KindPositionLeg, l.Leg.ID(), l.Leg.Position.ID(), int64(l.Snapshot.Order), l)
}

// --- Vault chain ---

func (tx *Tx) VaultSnapshot(ctx context.Context, key ident.VaultSnapshotKey) (*model.VaultSnapshot, bool, error) {
	return get[model.VaultSnapshot](ctx, tx, KindVaultSnapshot, key.ID())
}

func (tx *Tx) PutVaultSnapshot(s *model.VaultSnapshot) error {
	return tx.put(KindVaultSnapshot, s.Key.ID(), ident.EntityID(string(KindVault), string(s.Key.Vault)), int64(s.Order), s)
}

func (tx *Tx) VaultDay(ctx context.Context, key ident.DayKey) (*model.VaultDayData, bool, error) {
	return get[model.VaultDayData](ctx, tx, KindVaultDay, key.ID())
}

func (tx *Tx) PutVaultDay(d *model.VaultDayData) error {
	return tx.put(KindVaultDay, d.Key.ID(), ident.EntityID(string(KindVault), string(d.Key.Vault)), d.Key.Day, d)
}

// --- Reports ---

func (tx *Tx) StrategyReport(ctx context.Context, key ident.ReportKey) (*model.StrategyReport, bool, error) {
	return get[model.StrategyReport](ctx, tx, KindStrategyReport, key.ID())
}

func (tx *Tx) PutStrategyReport(r *model.StrategyReport) error {
	return tx.put(KindStrategyReport, r.Key.ID(), ident.EntityID(string(KindStrategy), string(r.Key.Strategy)), r.Timestamp.UnixMilli(), r)
}

func (tx *Tx) ReportResult(ctx context.Context, current ident.ReportKey) (*model.ReportResult, bool, error) {
	return get[model.ReportResult](ctx, tx, KindReportResult, current.ID())
}

func (tx *Tx) PutReportResult(r *model.ReportResult) error {
	return tx.put(KindReportResult, r.Current.ID(), ident.EntityID(string(KindStrategy), string(r.Current.Strategy)), r.EndTimestamp.UnixMilli(), r)
}

// --- Fees ---

func (tx *Tx) FeeTotals(ctx context.Context, c model.FeeCategory) (*model.FeeTotals, bool, error) {
	return get[model.FeeTotals](ctx, tx, KindFeeTotals, ident.EntityID(string(KindFeeTotals), string(c)))
}

func (tx *Tx) PutFeeTotals(f *model.FeeTotals) error {
	return tx.put(KindFeeTotals, ident.EntityID(string(KindFeeTotals), string(f.Category)), feeParent, 0, f)
}

func (tx *Tx) TokenFees(ctx context.Context, token ident.Address) (*model.TokenFees, bool, error) {
	return get[model.TokenFees](ctx, tx, KindTokenFees, ident.EntityID(string(KindTokenFees), string(token)))
}

func (tx *Tx) PutTokenFees(f *model.TokenFees) error {
	return tx.put(KindTokenFees, ident.EntityID(string(KindTokenFees), string(f.Token)), feeParent, 0, f)
}

// feeParent groups the fee aggregates so they can be scanned together.
const feeParent = "fees"

// --- Activity and event records ---

func (tx *Tx) PutDeposit(d *model.Deposit) error {
	return tx.put(KindDeposit, d.Event.ID(), ident.EntityID(string(KindVault), string(d.Vault)), d.Timestamp.UnixMilli(), d)
}

func (tx *Tx) PutWithdrawal(w *model.Withdrawal) error {
	return tx.put(KindWithdrawal, w.Event.ID(), ident.EntityID(string(KindVault), string(w.Vault)), w.Timestamp.UnixMilli(), w)
}

func (tx *Tx) Transfer(ctx context.Context, ev ident.EventKey) (*model.Transfer, bool, error) {
	return get[model.Transfer](ctx, tx, KindTransfer, ev.ID())
}

func (tx *Tx) PutTransfer(t *model.Transfer) error {
	return tx.put(KindTransfer, t.Event.ID(), ident.EntityID(string(KindVault), string(t.Vault)), t.Timestamp.UnixMilli(), t)
}

func (tx *Tx) Event(ctx context.Context, ev ident.EventKey) (*model.EventRecord, bool, error) {
	return get[model.EventRecord](ctx, tx, KindEvent, ev.ID())
}

func (tx *Tx) PutEvent(e *model.EventRecord) error {
	return tx.put(KindEvent, e.Event.ID(), "", 0, e)
}
