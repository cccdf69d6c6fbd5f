// Package xerrors holds the sentinel errors shared across the ledger core.
// Handlers map them to transport codes with errors.Is; everything else wraps
// them with context via fmt.Errorf and %w.
package xerrors

import "errors"

// Validation and business-rule errors. Terminal: reported to the caller
// verbatim, never retried by the core.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrAccountNotFound   = errors.New("account not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ErrTransactionNotFound is returned by transaction lookups for unknown ids.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrLockTimeout signals transient contention: the per-account lock could not
// be acquired within the bounded wait. Safe for the caller to retry with
// backoff; the core never retries internally.
var ErrLockTimeout = errors.New("too many concurrent operations")

// ErrPersistence wraps store or log write failures after the atomic unit has
// been rolled back. No partial state is visible when this is returned.
var ErrPersistence = errors.New("persistence failure")

// ErrDuplicateAccountNumber is returned when an account number collides on
// creation. Account numbers are unique and immutable.
var ErrDuplicateAccountNumber = errors.New("account number already exists")
