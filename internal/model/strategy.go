package model

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/atmx/vault-ledger/internal/ident"
)

// Strategy is a yield-generating allocation of a vault.
type Strategy struct {
	ID                ident.Address    `json:"id"`
	Vault             ident.Address    `json:"vault"`
	DebtRatio         sdkmath.Int      `json:"debt_ratio"`
	PerformanceFeeBps uint32           `json:"performance_fee_bps"`
	LatestReport      *ident.ReportKey `json:"latest_report,omitempty"`
	CreatedBy         ident.EventKey   `json:"created_by"`
}

// StrategyReport is one harvest, immutable once recorded.
type StrategyReport struct {
	Key         ident.ReportKey `json:"key"`
	Vault       ident.Address   `json:"vault"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`

	Gain      sdkmath.Int `json:"gain"`
	Loss      sdkmath.Int `json:"loss"`
	TotalGain sdkmath.Int `json:"total_gain"`
	TotalLoss sdkmath.Int `json:"total_loss"`
	TotalDebt sdkmath.Int `json:"total_debt"`
	DebtAdded sdkmath.Int `json:"debt_added"`
	DebtRatio sdkmath.Int `json:"debt_ratio"` // debt limit on older vaults
	DebtPaid  sdkmath.Int `json:"debt_paid"`
}

// SamePayload reports whether two reports carry identical figures.
func (r *StrategyReport) SamePayload(o *StrategyReport) bool {
	return r.Timestamp.Equal(o.Timestamp) &&
		r.Gain.Equal(o.Gain) && r.Loss.Equal(o.Loss) &&
		r.TotalGain.Equal(o.TotalGain) && r.TotalLoss.Equal(o.TotalLoss) &&
		r.TotalDebt.Equal(o.TotalDebt) && r.DebtAdded.Equal(o.DebtAdded) &&
		r.DebtRatio.Equal(o.DebtRatio) && r.DebtPaid.Equal(o.DebtPaid)
}

// ReportResult is the return between two consecutive reports of a strategy.
// It is keyed by the current report.
type ReportResult struct {
	Current  ident.ReportKey `json:"current"`
	Previous ident.ReportKey `json:"previous"`

	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	DurationMs     int64     `json:"duration_ms"`

	Profit     sdkmath.Int     `json:"profit"`
	DurationPr decimal.Decimal `json:"duration_pr"`
	APR        decimal.Decimal `json:"apr"`
}
