// Package ident derives the deterministic identities the ledger is keyed by:
// normalized addresses, event keys and the composite keys of every entity.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ZeroAddress is the mint/burn counterparty of share transfers.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressRegex = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

var (
	ErrInvalidAddress = errors.New("ident: invalid address")
	ErrInvalidTxHash  = errors.New("ident: invalid transaction hash")
)

var txHashRegex = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// Address is a lower-cased 0x-prefixed 20-byte hex identifier. Accounts,
// vaults, strategies and tokens are all addresses.
type Address string

// ParseAddress validates and normalizes an address.
func ParseAddress(s string) (Address, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if !addressRegex.MatchString(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address(norm), nil
}

// MustAddress is ParseAddress for constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return string(a) }

// ParseTxHash validates and normalizes a transaction hash.
func ParseTxHash(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if !txHashRegex.MatchString(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxHash, s)
	}
	return norm, nil
}
