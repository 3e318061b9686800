package trading

import (
	"errors"
	"fmt"
)

var (
	// ErrPriceUnavailable means no live quote could be fetched, the order
	// is rejected rather than filled against a stale price.
	ErrPriceUnavailable = errors.New("live price unavailable")

	// ErrDuplicatePositionUnresolved means the insert raced another writer
	// and the single re-read retry collided again.
	ErrDuplicatePositionUnresolved = errors.New("duplicate position could not be resolved, retry the order")

	// ErrPositionNotFound is returned by close requests for unknown ids.
	ErrPositionNotFound = errors.New("position not found")
)

// LedgerWriteError is the hard failure for a brand new position whose
// history row could not be written: the position insert was rolled back
// and the trade did not happen.
type LedgerWriteError struct {
	Symbol string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("order for %s rolled back, history write failed: %v", e.Symbol, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }
