package model

import (
	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/ident"
)

// FeeCategory classifies value routed to protocol fee recipients.
type FeeCategory string

const (
	FeeTreasury FeeCategory = "treasury"
	FeeStrategy FeeCategory = "strategy"
	FeeTotal    FeeCategory = "total"
)

// FeeTotals is the running reference-currency sum for one category.
type FeeTotals struct {
	Category FeeCategory `json:"category"`
	Amount   sdkmath.Int `json:"amount"`
	Events   uint64      `json:"events"`
}

// TokenFees are the raw token-unit fee totals of one underlying token.
type TokenFees struct {
	Token        ident.Address `json:"token"`
	StrategyFees sdkmath.Int   `json:"strategy_fees"`
	TreasuryFees sdkmath.Int   `json:"treasury_fees"`
	TotalFees    sdkmath.Int   `json:"total_fees"`
}
