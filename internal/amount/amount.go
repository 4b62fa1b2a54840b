// Package amount converts between vault shares and underlying-asset units
// and provides the checked integer arithmetic every ledger balance uses.
//
// All values are cosmossdk.io/math Ints bounded to 256 bits, matching the
// on-chain uint256 domain. Overflow is a hard error, never wraparound, and
// divisions floor exactly like the vault contracts do.
package amount

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// MaxDecimals is the largest exponent whose power of ten fits in 256 bits.
const MaxDecimals = 77

var (
	// ErrOverflow is returned when a result does not fit in 256 bits.
	ErrOverflow = errors.New("amount: overflow")

	// ErrInvalidDecimals is returned for a decimals value above MaxDecimals.
	ErrInvalidDecimals = errors.New("amount: invalid decimals")

	// ErrNegative is returned when an unsigned quantity would go below zero
	// or a negative operand is supplied.
	ErrNegative = errors.New("amount: negative value")

	// ErrMalformed is returned when a textual amount cannot be parsed.
	ErrMalformed = errors.New("amount: malformed")
)

var pow10 [MaxDecimals + 1]sdkmath.Int

func init() {
	ten := big.NewInt(10)
	for i := range pow10 {
		pow10[i] = sdkmath.NewIntFromBigInt(new(big.Int).Exp(ten, big.NewInt(int64(i)), nil))
	}
}

// Zero returns a fresh zero amount.
func Zero() sdkmath.Int { return sdkmath.ZeroInt() }

// New returns v as an amount.
func New(v uint64) sdkmath.Int { return sdkmath.NewIntFromUint64(v) }

// Parse reads a base-10 non-negative integer.
func Parse(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		if _, isNum := new(big.Int).SetString(s, 10); isNum {
			return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrOverflow, s)
		}
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrNegative, s)
	}
	return v, nil
}

// OrZero maps an uninitialized Int to zero.
func OrZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}

// Pow10 returns 10^decimals.
func Pow10(decimals uint32) (sdkmath.Int, error) {
	if decimals > MaxDecimals {
		return sdkmath.Int{}, fmt.Errorf("%w: %d exceeds %d", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	return pow10[decimals], nil
}

// Add returns a+b.
func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := OrZero(a).SafeAdd(OrZero(b))
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return res, nil
}

// Sub returns a-b, failing with ErrNegative when b > a.
func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	a, b = OrZero(a), OrZero(b)
	if b.GT(a) {
		return sdkmath.Int{}, fmt.Errorf("%w: %s - %s", ErrNegative, a, b)
	}
	return a.Sub(b), nil
}

// SubFloor returns max(a-b, 0) and whether the result was clamped.
func SubFloor(a, b sdkmath.Int) (sdkmath.Int, bool) {
	a, b = OrZero(a), OrZero(b)
	if b.GT(a) {
		return sdkmath.ZeroInt(), true
	}
	return a.Sub(b), false
}

// SignedSub returns a-b allowing a negative result. Used for realized
// profit, which may be a loss.
func SignedSub(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := OrZero(a).SafeSub(OrZero(b))
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s - %s", ErrOverflow, a, b)
	}
	return res, nil
}

// MulDiv returns floor(a*b/c). The intermediate product must fit in 256
// bits, as it must on-chain. c must be non-zero.
func MulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	a, b, c = OrZero(a), OrZero(b), OrZero(c)
	if a.IsNegative() || b.IsNegative() || c.IsNegative() {
		return sdkmath.Int{}, ErrNegative
	}
	prod, err := a.SafeMul(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s * %s", ErrOverflow, a, b)
	}
	res, err := prod.SafeQuo(c)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("amount: divide %s by %s: %w", prod, c, err)
	}
	return res, nil
}

// SharesToAssets converts a share amount into underlying assets at the
// vault's current totals. With no shares outstanding the result is zero.
func SharesToAssets(shares, totalAssets, totalSupply sdkmath.Int) (sdkmath.Int, error) {
	if OrZero(totalSupply).IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return MulDiv(shares, totalAssets, totalSupply)
}

// AssetsToShares converts an asset amount into shares. The first depositor
// (no supply) mints 1:1. An empty asset pool with outstanding supply also
// mints 1:1 rather than divide by zero.
func AssetsToShares(assets, totalAssets, totalSupply sdkmath.Int) (sdkmath.Int, error) {
	assets = OrZero(assets)
	if assets.IsNegative() {
		return sdkmath.Int{}, ErrNegative
	}
	if OrZero(totalSupply).IsZero() || OrZero(totalAssets).IsZero() {
		return assets, nil
	}
	return MulDiv(assets, totalSupply, totalAssets)
}

// MarkToMarket values a share balance in underlying assets:
// shares * pricePerShare / 10^decimals.
func MarkToMarket(shares, pricePerShare sdkmath.Int, decimals uint32) (sdkmath.Int, error) {
	scale, err := Pow10(decimals)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return MulDiv(shares, pricePerShare, scale)
}
