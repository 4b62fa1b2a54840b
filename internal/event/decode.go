package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/spot"
)

var (
	ErrUnknownVersion = errors.New("event: unknown protocol version")
	ErrUnknownKind    = errors.New("event: unknown event kind")
	ErrMalformed      = errors.New("event: malformed message")
)

// Protocol versions with distinct wire shapes.
const (
	// VersionV2 covers vaults that emit Deposit/Withdraw logs with both
	// amounts (API 0.3.x and 0.4.x).
	VersionV2 = "v2"
	// VersionV1Call covers legacy vaults indexed from call traces; only
	// the amount the caller passed is known.
	VersionV1Call = "v1-call"
)

// Envelope is the wire form of one event on the feed.
type Envelope struct {
	Version   string          `json:"version"`
	Kind      string          `json:"kind"`
	TxHash    string          `json:"tx_hash"`
	LogIndex  uint64          `json:"log_index"`
	Block     uint64          `json:"block"`
	Timestamp int64           `json:"timestamp"` // unix seconds
	Vault     string          `json:"vault"`
	Spot      *spot.Spot      `json:"spot,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Decoded is a canonical event plus the spot values the producer embedded,
// if any.
type Decoded struct {
	Event Event
	Spot  *spot.Spot
}

// Decode parses an envelope and normalizes its payload.
func Decode(raw []byte) (Decoded, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope normalizes an already parsed envelope.
func DecodeEnvelope(env Envelope) (Decoded, error) {
	meta, err := env.meta()
	if err != nil {
		return Decoded{}, err
	}

	var ev Event
	switch env.Version {
	case VersionV2:
		ev, err = decodeV2(meta, env.Kind, env.Payload)
	case VersionV1Call:
		ev, err = decodeV1Call(meta, env.Kind, env.Payload)
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownVersion, env.Version)
	}
	if err != nil {
		return Decoded{}, fmt.Errorf("%s %s %s: %w", env.Version, env.Kind, meta.Event, err)
	}

	d := Decoded{Event: ev}
	if env.Spot != nil {
		sp := env.Spot.Normalize()
		if err := sp.Validate(); err != nil {
			return Decoded{}, fmt.Errorf("%w: spot: %v", ErrMalformed, err)
		}
		d.Spot = &sp
	}
	return d, nil
}

func (env Envelope) meta() (Meta, error) {
	tx, err := ident.ParseTxHash(env.TxHash)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	vault, err := ident.ParseAddress(env.Vault)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: vault: %v", ErrMalformed, err)
	}
	return Meta{
		Event:     ident.EventKey{TxHash: tx, LogIndex: env.LogIndex},
		Block:     env.Block,
		Timestamp: time.Unix(env.Timestamp, 0).UTC(),
		Vault:     vault,
	}, nil
}

// parser converts wire strings, keeping the first error.
type parser struct {
	err error
}

func (p *parser) fail(field string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
	}
}

func (p *parser) addr(field, s string) ident.Address {
	a, err := ident.ParseAddress(s)
	if err != nil {
		p.fail(field, err)
	}
	return a
}

func (p *parser) amt(field, s string) sdkmath.Int {
	v, err := amount.Parse(s)
	if err != nil {
		p.fail(field, err)
		return amount.Zero()
	}
	return v
}

func (p *parser) bps(field string, v *uint32) uint32 {
	if v == nil {
		p.fail(field, errors.New("missing"))
		return 0
	}
	if *v > 10_000 {
		p.fail(field, fmt.Errorf("%d exceeds 10000", *v))
	}
	return *v
}

func unmarshal(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
