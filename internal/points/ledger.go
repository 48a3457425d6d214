package points

import (
	"context"
	"fmt"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

// Common errors
var (
	ErrCustomerNotFound    = fmt.Errorf("customer %w", apperror.ErrNotFound)
	ErrInsufficientBalance = apperror.ErrInsufficientBalance
)

// Ledger is the balance store and ledger writer used by point-moving
// operations. Implementations bound to a transaction must make every call
// part of that transaction.
type Ledger interface {
	GetBalance(ctx context.Context, customerID int64) (int64, error)
	// AdjustBalance applies delta in a single compare-and-set step and returns
	// the new balance. It never lets the balance go negative.
	AdjustBalance(ctx context.Context, customerID, delta int64) (int64, error)
	AppendEntry(ctx context.Context, entry *Entry) error
}

// Reader serves the customer-facing balance and history queries.
type Reader interface {
	GetBalance(ctx context.Context, customerID int64) (int64, error)
	ListEntries(ctx context.Context, customerID int64, limit, offset int) ([]*Entry, int, error)
}
