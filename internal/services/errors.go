package services

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSameAccountTransfer = errors.New("cannot transfer to same account")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountDisabled     = errors.New("account is disabled")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	// ErrConcurrencyTimeout means a bounded balance read could not
	// acquire its lock in time. Retryable.
	ErrConcurrencyTimeout = errors.New("balance read timed out")

	// ErrBalanceConflict means a concurrent mutation won the
	// compare-and-set race. Retryable; the loser's account state is
	// untouched.
	ErrBalanceConflict = errors.New("balance changed concurrently")

	// ErrTransactionFailed wraps a store-level transaction abort. The
	// whole unit of work was rolled back.
	ErrTransactionFailed = errors.New("transaction failed")
)
