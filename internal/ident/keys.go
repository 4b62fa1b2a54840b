package ident

import (
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// namespace scopes every derived entity ID.
var namespace = uuid.MustParse("6f1d3c2e-8a4b-5d7e-9f10-2b3c4d5e6f70")

// EventKey identifies one log emitted by the protocol. The upstream feed
// delivers events in (block, tx index, log index) order; within a
// transaction the log index alone orders them.
type EventKey struct {
	TxHash   string `json:"tx_hash"`
	LogIndex uint64 `json:"log_index"`
}

// Compare orders event keys by transaction hash, then log index.
func (k EventKey) Compare(o EventKey) int {
	if c := cmp.Compare(k.TxHash, o.TxHash); c != 0 {
		return c
	}
	return cmp.Compare(k.LogIndex, o.LogIndex)
}

func (k EventKey) ID() string { return derive("event", k.TxHash, u64(k.LogIndex)) }

func (k EventKey) String() string { return fmt.Sprintf("%s#%d", k.TxHash, k.LogIndex) }

// PositionKey identifies the running position of one account in one vault.
type PositionKey struct {
	Account Address `json:"account"`
	Vault   Address `json:"vault"`
}

func (k PositionKey) Compare(o PositionKey) int {
	if c := cmp.Compare(k.Account, o.Account); c != 0 {
		return c
	}
	return cmp.Compare(k.Vault, o.Vault)
}

func (k PositionKey) ID() string { return derive("position", string(k.Account), string(k.Vault)) }

// SnapshotKey addresses one link of a position's snapshot chain.
type SnapshotKey struct {
	Position PositionKey `json:"position"`
	Order    uint64      `json:"order"`
}

func (k SnapshotKey) Compare(o SnapshotKey) int {
	if c := k.Position.Compare(o.Position); c != 0 {
		return c
	}
	return cmp.Compare(k.Order, o.Order)
}

func (k SnapshotKey) ID() string {
	return derive("position_snapshot", string(k.Position.Account), string(k.Position.Vault), u64(k.Order))
}

// Side distinguishes the legs a single event can contribute to one position.
type Side uint8

const (
	SideSelf Side = iota // deposit or withdraw by the account itself
	SideFrom             // outgoing transfer leg
	SideTo               // incoming transfer leg
)

func (s Side) String() string {
	switch s {
	case SideFrom:
		return "from"
	case SideTo:
		return "to"
	default:
		return "self"
	}
}

// LegKey is the idempotency key of a position update. A self-transfer
// touches the same position twice in one event; the Side keeps the two
// legs apart while a redelivery of either leg maps to the same key.
type LegKey struct {
	Position PositionKey `json:"position"`
	Event    EventKey    `json:"event"`
	Side     Side        `json:"side"`
}

func (k LegKey) ID() string {
	return derive("position_leg",
		string(k.Position.Account), string(k.Position.Vault),
		k.Event.TxHash, u64(k.Event.LogIndex), string([]byte{byte(k.Side)}))
}

// VaultSnapshotKey addresses a vault snapshot. Vault snapshots are keyed
// per originating transaction rather than per log.
type VaultSnapshotKey struct {
	Vault  Address `json:"vault"`
	TxHash string  `json:"tx_hash"`
}

func (k VaultSnapshotKey) Compare(o VaultSnapshotKey) int {
	if c := cmp.Compare(k.Vault, o.Vault); c != 0 {
		return c
	}
	return cmp.Compare(k.TxHash, o.TxHash)
}

func (k VaultSnapshotKey) ID() string { return derive("vault_snapshot", string(k.Vault), k.TxHash) }

// ReportKey identifies one strategy harvest report.
type ReportKey struct {
	Strategy Address  `json:"strategy"`
	Event    EventKey `json:"event"`
}

func (k ReportKey) ID() string {
	return derive("strategy_report", string(k.Strategy), k.Event.TxHash, u64(k.Event.LogIndex))
}

// DayKey identifies a vault's aggregate for one UTC day (unix day number).
type DayKey struct {
	Vault Address `json:"vault"`
	Day   int64   `json:"day"`
}

func (k DayKey) ID() string { return derive("vault_day", string(k.Vault), u64(uint64(k.Day))) }

// EntityID derives the ID of a singly-keyed entity (account, vault,
// strategy, token fee, fee category).
func EntityID(kind, id string) string { return derive(kind, id) }

// derive hashes a kind tag and a length-prefixed field list into a UUIDv5.
// Length prefixes make the encoding injective: no two distinct field lists
// produce the same byte string.
func derive(kind string, fields ...string) string {
	buf := make([]byte, 0, 128)
	buf = binary.AppendUvarint(buf, uint64(len(kind)))
	buf = append(buf, kind...)
	for _, f := range fields {
		buf = binary.AppendUvarint(buf, uint64(len(f)))
		buf = append(buf, f...)
	}
	return uuid.NewSHA1(namespace, buf).String()
}

func u64(v uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return string(b[:])
}
