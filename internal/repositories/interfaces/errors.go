package interfaces

import "errors"

// Sentinel errors returned by every repository implementation. Callers match
// them with errors.Is; implementations wrap them with context.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid transaction status transition")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
)
