package points

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/smartrewards/internal/database"
)

// Repository handles point balances and ledger persistence
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new point repository over a connection or transaction
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetBalance returns the customer's current point balance
func (r *Repository) GetBalance(ctx context.Context, customerID int64) (int64, error) {
	query := `SELECT points FROM customers WHERE id = $1`

	var balance int64
	if err := r.db.QueryRowContext(ctx, query, customerID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCustomerNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// AdjustBalance adds delta to the balance unless the result would be negative
func (r *Repository) AdjustBalance(ctx context.Context, customerID, delta int64) (int64, error) {
	query := `
		UPDATE customers
		SET points = points + $2
		WHERE id = $1 AND points + $2 >= 0
		RETURNING points
	`

	var balance int64
	err := r.db.QueryRowContext(ctx, query, customerID, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	// No row matched: either the customer is missing or the guard rejected it.
	exists, err := r.CustomerExists(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrCustomerNotFound
	}
	return 0, ErrInsufficientBalance
}

// AppendEntry inserts a ledger entry
func (r *Repository) AppendEntry(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO transactions (customer_id, business_id, type, amount, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.CustomerID,
		entry.BusinessID,
		entry.Type,
		entry.Amount,
		entry.GroupID,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// ListEntries retrieves a customer's ledger with pagination, newest first
func (r *Repository) ListEntries(ctx context.Context, customerID int64, limit, offset int) ([]*Entry, int, error) {
	// Get total count
	var total int
	countQuery := `SELECT COUNT(*) FROM transactions WHERE customer_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	query := `
		SELECT id, customer_id, business_id, type, amount, group_id, created_at
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.CustomerID,
			&entry.BusinessID,
			&entry.Type,
			&entry.Amount,
			&entry.GroupID,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, total, nil
}

// CustomerExists reports whether a customer record exists
func (r *Repository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, customerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check customer: %w", err)
	}
	return exists, nil
}
