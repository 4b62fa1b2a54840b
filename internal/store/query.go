package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/model"
)

// Read-side helpers for the persistence collaborator. Each returns a chain
// in order.

func scanAll[T any](ctx context.Context, b Backend, kind Kind, parent string) ([]T, error) {
	recs, err := b.Scan(ctx, kind, parent)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PositionHistory returns a position's snapshots by order.
func (s *Store) PositionHistory(ctx context.Context, key ident.PositionKey) ([]model.PositionSnapshot, error) {
	return scanAll[model.PositionSnapshot](ctx, s.backend, KindPositionSnapshot, key.ID())
}

// VaultHistory returns a vault's snapshots by order.
func (s *Store) VaultHistory(ctx context.Context, vault ident.Address) ([]model.VaultSnapshot, error) {
	return scanAll[model.VaultSnapshot](ctx, s.backend, KindVaultSnapshot, ident.EntityID(string(KindVault), string(vault)))
}

// VaultDays returns a vault's daily aggregates by day.
func (s *Store) VaultDays(ctx context.Context, vault ident.Address) ([]model.VaultDayData, error) {
	return scanAll[model.VaultDayData](ctx, s.backend, KindVaultDay, ident.EntityID(string(KindVault), string(vault)))
}

// StrategyReports returns a strategy's reports by timestamp.
func (s *Store) StrategyReports(ctx context.Context, strategy ident.Address) ([]model.StrategyReport, error) {
	return scanAll[model.StrategyReport](ctx, s.backend, KindStrategyReport, ident.EntityID(string(KindStrategy), string(strategy)))
}

// ReportResults returns a strategy's report results by end timestamp.
func (s *Store) ReportResults(ctx context.Context, strategy ident.Address) ([]model.ReportResult, error) {
	return scanAll[model.ReportResult](ctx, s.backend, KindReportResult, ident.EntityID(string(KindStrategy), string(strategy)))
}

// FeeTotals returns the per-category reference-currency totals.
func (s *Store) FeeTotals(ctx context.Context) ([]model.FeeTotals, error) {
	return scanAll[model.FeeTotals](ctx, s.backend, KindFeeTotals, feeParent)
}

// TokenFees returns the per-token fee totals.
func (s *Store) TokenFees(ctx context.Context) ([]model.TokenFees, error) {
	return scanAll[model.TokenFees](ctx, s.backend, KindTokenFees, feeParent)
}

// Positions returns every position held by an account.
func (s *Store) Positions(ctx context.Context, account ident.Address) ([]model.Position, error) {
	return scanAll[model.Position](ctx, s.backend, KindPosition, ident.EntityID(string(KindAccount), string(account)))
}

// Transfers returns a vault's share transfers by timestamp.
func (s *Store) Transfers(ctx context.Context, vault ident.Address) ([]model.Transfer, error) {
	return scanAll[model.Transfer](ctx, s.backend, KindTransfer, ident.EntityID(string(KindVault), string(vault)))
}
