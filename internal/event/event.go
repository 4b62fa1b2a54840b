// Package event defines the canonical events the ledger consumes and the
// adapters that normalize each protocol version's wire shape into them.
package event

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/ident"
)

// Kind names a canonical event type.
type Kind string

const (
	KindDeposit          Kind = "deposit"
	KindWithdraw         Kind = "withdraw"
	KindTransfer         Kind = "transfer"
	KindStrategyReported Kind = "strategy_reported"
	KindFeeUpdated       Kind = "fee_updated"
	KindVaultRegistered  Kind = "vault_registered"
	KindStrategyAdded    Kind = "strategy_added"
)

// Meta is the identity and position of an event in the stream.
type Meta struct {
	Event     ident.EventKey `json:"event"`
	Block     uint64         `json:"block"`
	Timestamp time.Time      `json:"timestamp"`
	Vault     ident.Address  `json:"vault"`
}

func (m Meta) meta() Meta { return m }

// Event is implemented by every canonical event type.
type Event interface {
	Kind() Kind
	meta() Meta
}

// MetaOf returns the stream metadata of e.
func MetaOf(e Event) Meta { return e.meta() }

// Deposit credits Shares to Account for Assets paid in. A nil Shares
// means the source did not report the minted amount.
type Deposit struct {
	Meta
	Account ident.Address `json:"account"`
	Assets  sdkmath.Int   `json:"assets"`
	Shares  sdkmath.Int   `json:"shares"`
}

func (Deposit) Kind() Kind { return KindDeposit }

// Withdraw burns Shares from Account for Assets paid out. A nil Assets
// means the source did not report the paid amount.
type Withdraw struct {
	Meta
	Account ident.Address `json:"account"`
	Shares  sdkmath.Int   `json:"shares"`
	Assets  sdkmath.Int   `json:"assets"`
}

func (Withdraw) Kind() Kind { return KindWithdraw }

// Transfer moves vault shares between accounts. From is the zero address
// for mints and To for burns.
type Transfer struct {
	Meta
	From   ident.Address `json:"from"`
	To     ident.Address `json:"to"`
	Shares sdkmath.Int   `json:"shares"`
}

func (Transfer) Kind() Kind { return KindTransfer }

// StrategyReported is a strategy harvest.
type StrategyReported struct {
	Meta
	Strategy  ident.Address `json:"strategy"`
	Gain      sdkmath.Int   `json:"gain"`
	Loss      sdkmath.Int   `json:"loss"`
	TotalGain sdkmath.Int   `json:"total_gain"`
	TotalLoss sdkmath.Int   `json:"total_loss"`
	TotalDebt sdkmath.Int   `json:"total_debt"`
	DebtAdded sdkmath.Int   `json:"debt_added"`
	DebtRatio sdkmath.Int   `json:"debt_ratio"`
	DebtPaid  sdkmath.Int   `json:"debt_paid"`
}

func (StrategyReported) Kind() Kind { return KindStrategyReported }

// FeeKind selects the vault setting a FeeUpdated changes.
type FeeKind string

const (
	FeePerformance FeeKind = "performance"
	FeeManagement  FeeKind = "management"
	FeeRewards     FeeKind = "rewards"
)

// FeeUpdated changes a vault fee rate, or the rewards recipient when Fee
// is FeeRewards.
type FeeUpdated struct {
	Meta
	Fee       FeeKind       `json:"fee"`
	Bps       uint32        `json:"bps,omitempty"`
	Recipient ident.Address `json:"recipient,omitempty"`
}

func (FeeUpdated) Kind() Kind { return KindFeeUpdated }

// VaultRegistered announces a new vault from the registry.
type VaultRegistered struct {
	Meta
	Token          ident.Address `json:"token"`
	APIVersion     string        `json:"api_version"`
	Classification string        `json:"classification,omitempty"`
}

func (VaultRegistered) Kind() Kind { return KindVaultRegistered }

// StrategyAdded attaches a strategy to a vault.
type StrategyAdded struct {
	Meta
	Strategy          ident.Address `json:"strategy"`
	DebtRatio         sdkmath.Int   `json:"debt_ratio"`
	PerformanceFeeBps uint32        `json:"performance_fee_bps"`
}

func (StrategyAdded) Kind() Kind { return KindStrategyAdded }
