package domain

import "errors"

// Domain failures. Callers match them with errors.Is; adapters wrap them with context.
var (
	ErrInvalidAccountID    = errors.New("invalid account id")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRate         = errors.New("invalid interest rate")
	ErrInvalidPeriods      = errors.New("compounding periods must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrConcurrencyConflict = errors.New("account was modified concurrently")
	ErrCorruptLog          = errors.New("transaction log cannot be replayed")
)
