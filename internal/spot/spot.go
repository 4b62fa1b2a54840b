// Package spot reads a vault's on-chain values at the block of an event.
package spot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
)

// ErrNotFound is returned when no values are known for a vault.
var ErrNotFound = errors.New("spot: no values for vault")

// Spot is a vault's state as observed at one block.
type Spot struct {
	TotalAssets   sdkmath.Int   `json:"total_assets"`
	TotalSupply   sdkmath.Int   `json:"total_supply"`
	PricePerShare sdkmath.Int   `json:"price_per_share"`
	Decimals      uint32        `json:"decimals"`
	Token         ident.Address `json:"token,omitempty"`
}

// Validate checks that the values are usable for conversions.
func (s Spot) Validate() error {
	if s.Decimals > amount.MaxDecimals {
		return fmt.Errorf("%w: %d", amount.ErrInvalidDecimals, s.Decimals)
	}
	for _, v := range []sdkmath.Int{s.TotalAssets, s.TotalSupply, s.PricePerShare} {
		if !v.IsNil() && v.IsNegative() {
			return amount.ErrNegative
		}
	}
	return nil
}

// Normalize replaces unset amounts with zero.
func (s Spot) Normalize() Spot {
	s.TotalAssets = amount.OrZero(s.TotalAssets)
	s.TotalSupply = amount.OrZero(s.TotalSupply)
	s.PricePerShare = amount.OrZero(s.PricePerShare)
	return s
}

// Reader returns a vault's values at a block. Errors are fatal for the
// event being processed.
type Reader interface {
	Read(ctx context.Context, vault ident.Address, block uint64) (Spot, error)
}

// Static is a Reader over a fixed table, latest value per vault. Used by
// tests and replay tooling.
type Static struct {
	mu    sync.RWMutex
	vault map[ident.Address]Spot
}

// NewStatic creates an empty static reader.
func NewStatic() *Static {
	return &Static{vault: make(map[ident.Address]Spot)}
}

// Set records the values returned for vault from now on.
func (s *Static) Set(vault ident.Address, sp Spot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault[vault] = sp.Normalize()
}

func (s *Static) Read(_ context.Context, vault ident.Address, _ uint64) (Spot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.vault[vault]
	if !ok {
		return Spot{}, fmt.Errorf("%w: %s", ErrNotFound, vault)
	}
	return sp, nil
}
