package model

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/ident"
)

// Deposit records one deposit as it was applied.
type Deposit struct {
	Event        ident.EventKey `json:"event"`
	Account      ident.Address  `json:"account"`
	Vault        ident.Address  `json:"vault"`
	TokenAmount  sdkmath.Int    `json:"token_amount"`
	SharesMinted sdkmath.Int    `json:"shares_minted"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Withdrawal records one withdrawal as it was applied.
type Withdrawal struct {
	Event       ident.EventKey `json:"event"`
	Account     ident.Address  `json:"account"`
	Vault       ident.Address  `json:"vault"`
	TokenAmount sdkmath.Int    `json:"token_amount"`
	SharesBurnt sdkmath.Int    `json:"shares_burnt"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Transfer records one share transfer between accounts, including fee mints.
type Transfer struct {
	Event          ident.EventKey `json:"event"`
	From           ident.Address  `json:"from"`
	To             ident.Address  `json:"to"`
	Vault          ident.Address  `json:"vault"`
	Token          ident.Address  `json:"token"`
	TokenAmount    sdkmath.Int    `json:"token_amount"`
	TokenAmountRef sdkmath.Int    `json:"token_amount_ref"` // oracle-valued, zero when unavailable
	ShareAmount    sdkmath.Int    `json:"share_amount"`
	IsProtocolFee  bool           `json:"is_protocol_fee"`
	Category       FeeCategory    `json:"category,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// EventRecord marks an event as applied. Payload is the canonical encoding
// of the event and Digest its SHA-256; a redelivery is compared by digest
// since stores may re-encode the payload.
type EventRecord struct {
	Event     ident.EventKey          `json:"event"`
	Kind      string                  `json:"kind"`
	Digest    string                  `json:"digest"`
	Payload   json.RawMessage         `json:"payload"`
	Positions []ident.SnapshotKey     `json:"positions,omitempty"`
	Vault     *ident.VaultSnapshotKey `json:"vault,omitempty"`
	Report    *ident.ReportKey        `json:"report,omitempty"`
	Skipped   string                  `json:"skipped,omitempty"`
	Warnings  []Warning               `json:"warnings,omitempty"`
}

// Warning is a data-quality condition met while applying an event. The
// event is still applied on a best-effort basis.
type Warning struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
