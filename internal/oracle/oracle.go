// Package oracle values token amounts in the reference currency used for
// fee totals. Prices are quoted per whole token in reference units.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/ident"
)

// ErrUnavailable is returned when no price is known for a token. Callers
// record a zero contribution instead of failing.
var ErrUnavailable = errors.New("oracle: price unavailable")

// Oracle converts an amount of token into the reference currency.
type Oracle interface {
	Value(ctx context.Context, token ident.Address, amt sdkmath.Int) (sdkmath.Int, error)
}

// Quote is the price of one whole token (10^Decimals base units) in
// reference-currency base units.
type Quote struct {
	Price    sdkmath.Int `json:"price"`
	Decimals uint32      `json:"decimals"`
}

// Value returns amt * Price / 10^Decimals.
func (q Quote) Value(amt sdkmath.Int) (sdkmath.Int, error) {
	scale, err := amount.Pow10(q.Decimals)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return amount.MulDiv(amt, q.Price, scale)
}

// Static is an Oracle over a fixed price table.
type Static struct {
	mu     sync.RWMutex
	quotes map[ident.Address]Quote
}

// NewStatic creates a static oracle with the given quotes.
func NewStatic(quotes map[ident.Address]Quote) *Static {
	s := &Static{quotes: make(map[ident.Address]Quote, len(quotes))}
	for token, q := range quotes {
		s.quotes[token] = q
	}
	return s
}

// Set replaces the quote for token.
func (s *Static) Set(token ident.Address, q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[token] = q
}

func (s *Static) Value(_ context.Context, token ident.Address, amt sdkmath.Int) (sdkmath.Int, error) {
	s.mu.RLock()
	q, ok := s.quotes[token]
	s.mu.RUnlock()
	if !ok || q.Price.IsNil() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrUnavailable, token)
	}
	return q.Value(amt)
}
