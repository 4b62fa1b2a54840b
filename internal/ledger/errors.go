package ledger

import (
	"errors"
	"fmt"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/model"
)

var (
	// ErrConflictingDuplicate is returned when an idempotency key is seen
	// again with a different payload. Nothing is committed.
	ErrConflictingDuplicate = errors.New("ledger: conflicting duplicate")

	// ErrMissingPriorState marks an event that expects history the ledger
	// does not have. Reported as a warning.
	ErrMissingPriorState = errors.New("ledger: missing prior state")

	// ErrInsufficientBalance marks a withdrawal or outgoing transfer larger
	// than the recorded balance. The balance is clamped at zero and the
	// condition reported as a warning.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrOracleUnavailable marks a fee transfer that could not be valued.
	// Reported as a warning; the transfer contributes zero.
	ErrOracleUnavailable = errors.New("ledger: oracle unavailable")

	// ErrUnsupportedEvent is returned for event types the ledger does not
	// handle.
	ErrUnsupportedEvent = errors.New("ledger: unsupported event")
)

// Warning reasons, also used as metric labels.
const (
	ReasonMissingPriorState   = "missing_prior_state"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonOracleUnavailable   = "oracle_unavailable"
)

// IsArithmetic reports whether err is an overflow or invalid-decimals
// failure. Such events are rejected, never corrected.
func IsArithmetic(err error) bool {
	return errors.Is(err, amount.ErrOverflow) ||
		errors.Is(err, amount.ErrInvalidDecimals) ||
		errors.Is(err, amount.ErrNegative)
}

func warning(reason string, sentinel error, format string, args ...any) model.Warning {
	return model.Warning{
		Reason:  reason,
		Message: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)).Error(),
	}
}

func conflict(what string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrConflictingDuplicate, what, key)
}
