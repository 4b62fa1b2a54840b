// Package model defines the entities the ledger derives from the event stream.
// All token and share quantities are 256-bit integers (cosmossdk.io/math);
// rates derived from them use shopspring/decimal. Never float64 for money.
package model

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/ident"
)

// Account is created lazily on first reference and never mutated.
type Account struct {
	ID        ident.Address  `json:"id"`
	FirstSeen ident.EventKey `json:"first_seen"`
}

// Vault is the running aggregate of one tokenized vault.
type Vault struct {
	ID             ident.Address `json:"id"`
	Token          ident.Address `json:"token"`       // underlying asset
	ShareToken     ident.Address `json:"share_token"` // the vault itself
	Decimals       uint32        `json:"decimals"`
	APIVersion     string        `json:"api_version,omitempty"`
	Classification string        `json:"classification,omitempty"`

	BalanceTokens     sdkmath.Int `json:"balance_tokens"` // idle + invested
	BalanceTokensIdle sdkmath.Int `json:"balance_tokens_idle"`
	SharesSupply      sdkmath.Int `json:"shares_supply"`

	ManagementFeeBps  uint32        `json:"management_fee_bps"`
	PerformanceFeeBps uint32        `json:"performance_fee_bps"`
	RewardsRecipient  ident.Address `json:"rewards_recipient,omitempty"`

	LatestUpdate *ident.VaultSnapshotKey `json:"latest_update,omitempty"`
	Snapshots    uint64                  `json:"snapshots"` // next snapshot order
	LatestDay    *ident.DayKey           `json:"latest_day,omitempty"`
	CreatedBy    ident.EventKey          `json:"created_by"`
	CreatedAt    time.Time               `json:"created_at"`
}

// Position is one account's running balance in one vault.
type Position struct {
	Key        ident.PositionKey `json:"key"`
	Token      ident.Address     `json:"token"`
	ShareToken ident.Address     `json:"share_token"`

	BalanceShares   sdkmath.Int `json:"balance_shares"`
	BalanceTokens   sdkmath.Int `json:"balance_tokens"`   // net principal basis
	BalanceProfit   sdkmath.Int `json:"balance_profit"`   // realized, signed
	BalancePosition sdkmath.Int `json:"balance_position"` // mark-to-market

	LatestUpdate *ident.SnapshotKey `json:"latest_update,omitempty"`
	CreatedBy    ident.EventKey     `json:"created_by"`
}

// PositionSnapshotKind names the event leg that produced a snapshot.
type PositionSnapshotKind string

const (
	PositionDeposit     PositionSnapshotKind = "deposit"
	PositionWithdraw    PositionSnapshotKind = "withdraw"
	PositionTransferIn  PositionSnapshotKind = "transfer_in"
	PositionTransferOut PositionSnapshotKind = "transfer_out"
)

// PositionSnapshot is an immutable link of a position's chain. AssetsDelta
// and SharesDelta are the triggering leg's own amounts; the remaining
// quantities are cumulative over the chain.
type PositionSnapshot struct {
	Key      ident.SnapshotKey    `json:"key"`
	Previous *ident.SnapshotKey   `json:"previous,omitempty"`
	Leg      ident.LegKey         `json:"leg"`
	Kind     PositionSnapshotKind `json:"kind"`

	Timestamp   time.Time `json:"timestamp"`
	BlockNumber uint64    `json:"block_number"`

	AssetsDelta sdkmath.Int `json:"assets_delta"`
	SharesDelta sdkmath.Int `json:"shares_delta"`

	Deposits       sdkmath.Int `json:"deposits"`
	Withdrawals    sdkmath.Int `json:"withdrawals"`
	SharesMinted   sdkmath.Int `json:"shares_minted"`
	SharesBurnt    sdkmath.Int `json:"shares_burnt"`
	SharesSent     sdkmath.Int `json:"shares_sent"`
	SharesReceived sdkmath.Int `json:"shares_received"`
	TokensSent     sdkmath.Int `json:"tokens_sent"`
	TokensReceived sdkmath.Int `json:"tokens_received"`

	BalancePosition sdkmath.Int `json:"balance_position"`
}

// SamePayload reports whether s records the same leg inputs as o.
func (s *PositionSnapshot) SamePayload(o *PositionSnapshot) bool {
	return s.Kind == o.Kind &&
		s.AssetsDelta.Equal(o.AssetsDelta) &&
		s.SharesDelta.Equal(o.SharesDelta)
}

// LegRef indexes a position snapshot by the leg that produced it.
type LegRef struct {
	Leg      ident.LegKey      `json:"leg"`
	Snapshot ident.SnapshotKey `json:"snapshot"`
}

// VaultSnapshotKind names the event that produced a vault snapshot.
type VaultSnapshotKind string

const (
	VaultDeposit          VaultSnapshotKind = "deposit"
	VaultWithdraw         VaultSnapshotKind = "withdraw"
	VaultStrategyReported VaultSnapshotKind = "strategy_reported"
	VaultPerformanceFee   VaultSnapshotKind = "performance_fee"
	VaultManagementFee    VaultSnapshotKind = "management_fee"
	VaultRewardsRecipient VaultSnapshotKind = "rewards_recipient"
)

// VaultSnapshot is an immutable link of a vault's chain, one per vault per
// originating transaction. Order is chain position; it is not part of the key.
type VaultSnapshot struct {
	Key      ident.VaultSnapshotKey  `json:"key"`
	Order    uint64                  `json:"order"`
	Previous *ident.VaultSnapshotKey `json:"previous,omitempty"`
	Kind     VaultSnapshotKind       `json:"kind"`
	Event    ident.EventKey          `json:"event"`

	Timestamp   time.Time `json:"timestamp"`
	BlockNumber uint64    `json:"block_number"`

	AssetsDelta sdkmath.Int `json:"assets_delta"`
	SharesDelta sdkmath.Int `json:"shares_delta"`

	TokensDeposited sdkmath.Int `json:"tokens_deposited"`
	TokensWithdrawn sdkmath.Int `json:"tokens_withdrawn"`
	SharesMinted    sdkmath.Int `json:"shares_minted"`
	SharesBurnt     sdkmath.Int `json:"shares_burnt"`

	PricePerShare    sdkmath.Int `json:"price_per_share"`
	BalancePosition  sdkmath.Int `json:"balance_position"`
	ReturnsGenerated sdkmath.Int `json:"returns_generated"`

	TotalFees       sdkmath.Int `json:"total_fees"`
	ManagementFees  sdkmath.Int `json:"management_fees"`
	PerformanceFees sdkmath.Int `json:"performance_fees"`

	ManagementFeeBps  uint32        `json:"management_fee_bps"`
	PerformanceFeeBps uint32        `json:"performance_fee_bps"`
	RewardsRecipient  ident.Address `json:"rewards_recipient,omitempty"`
}

// SamePayload reports whether s was produced by the same inputs as o.
func (s *VaultSnapshot) SamePayload(o *VaultSnapshot) bool {
	return s.Kind == o.Kind &&
		s.AssetsDelta.Equal(o.AssetsDelta) &&
		s.SharesDelta.Equal(o.SharesDelta) &&
		s.PricePerShare.Equal(o.PricePerShare) &&
		s.BalancePosition.Equal(o.BalancePosition) &&
		s.ManagementFeeBps == o.ManagementFeeBps &&
		s.PerformanceFeeBps == o.PerformanceFeeBps &&
		s.RewardsRecipient == o.RewardsRecipient
}

// VaultDayData aggregates a vault's activity over one UTC day.
type VaultDayData struct {
	Key                   ident.DayKey `json:"key"`
	Timestamp             time.Time    `json:"timestamp"`
	PricePerShare         sdkmath.Int  `json:"price_per_share"`
	Deposited             sdkmath.Int  `json:"deposited"`
	Withdrawn             sdkmath.Int  `json:"withdrawn"`
	DayReturnsGenerated   sdkmath.Int  `json:"day_returns_generated"`
	TotalReturnsGenerated sdkmath.Int  `json:"total_returns_generated"`

	// Reference-currency values; zero when the oracle had no price.
	DayReturnsGeneratedRef   sdkmath.Int `json:"day_returns_generated_ref"`
	TotalReturnsGeneratedRef sdkmath.Int `json:"total_returns_generated_ref"`
}
