package mukando

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fkhayef/smartrewards/internal/database"
	"github.com/fkhayef/smartrewards/internal/points"
)

const groupColumns = `
	g.id, g.creator_id, g.business_id, g.goal_label, g.goal_points, g.cadence, g.term_months,
	g.status, g.capacity, g.discount_rate, g.pool_points, g.unpaid_bonus_points, g.rotation_pointer,
	g.created_at, g.approved_at, g.completed_at, g.last_payout_at, g.cancelled_at`

const memberColumns = `id, group_id, customer_id, payout_order, joined_at, contributed_points, rewards_received`

// Repository handles savings group persistence
type Repository struct {
	db     database.DBTX
	ledger *points.Repository
}

// NewRepository creates a new savings group repository over a connection or transaction
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db, ledger: points.NewRepository(db)}
}

// Ledger returns the point ledger sharing this repository's connection
func (r *Repository) Ledger() points.Ledger {
	return r.ledger
}

// CustomerExists reports whether a customer record exists
func (r *Repository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	return r.ledger.CustomerExists(ctx, customerID)
}

// BusinessExists reports whether a business record exists
func (r *Repository) BusinessExists(ctx context.Context, businessID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM businesses WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, businessID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check business: %w", err)
	}
	return exists, nil
}

// CreateGroup inserts a new group
func (r *Repository) CreateGroup(ctx context.Context, g *Group) error {
	query := `
		INSERT INTO savings_groups (creator_id, business_id, goal_label, goal_points, cadence, term_months, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		g.CreatorID,
		g.BusinessID,
		g.GoalLabel,
		g.GoalPoints,
		g.Cadence,
		g.TermMonths,
		g.Status,
		g.CreatedAt,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by its ID
func (r *Repository) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	return r.getGroup(ctx, `SELECT`+groupColumns+` FROM savings_groups g WHERE g.id = $1`, groupID)
}

// LockGroup retrieves a group and locks its row for the rest of the transaction
func (r *Repository) LockGroup(ctx context.Context, groupID int64) (*Group, error) {
	return r.getGroup(ctx, `SELECT`+groupColumns+` FROM savings_groups g WHERE g.id = $1 FOR UPDATE`, groupID)
}

func (r *Repository) getGroup(ctx context.Context, query string, groupID int64) (*Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, query, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// UpdateGroup writes the mutable state of a group
func (r *Repository) UpdateGroup(ctx context.Context, g *Group) error {
	query := `
		UPDATE savings_groups
		SET status = $2,
		    capacity = $3,
		    discount_rate = $4,
		    pool_points = $5,
		    unpaid_bonus_points = $6,
		    rotation_pointer = $7,
		    approved_at = $8,
		    completed_at = $9,
		    last_payout_at = $10,
		    cancelled_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.Status,
		g.Capacity,
		g.DiscountRate,
		g.PoolPoints,
		g.UnpaidBonusPoints,
		g.RotationPointer,
		g.ApprovedAt,
		g.CompletedAt,
		g.LastPayoutAt,
		g.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	return nil
}

// CountMembers returns the number of members in a group
func (r *Repository) CountMembers(ctx context.Context, groupID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_memberships WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// GetMember retrieves a customer's membership in a group
func (r *Repository) GetMember(ctx context.Context, groupID, customerID int64) (*Membership, error) {
	query := `SELECT ` + memberColumns + ` FROM group_memberships WHERE group_id = $1 AND customer_id = $2`

	m := &Membership{}
	err := r.db.QueryRowContext(ctx, query, groupID, customerID).Scan(
		&m.ID,
		&m.GroupID,
		&m.CustomerID,
		&m.PayoutOrder,
		&m.JoinedAt,
		&m.ContributedPoints,
		&m.RewardsReceived,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

// ListMembers retrieves all members of a group in payout order
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]*Membership, error) {
	query := `SELECT ` + memberColumns + ` FROM group_memberships WHERE group_id = $1 ORDER BY payout_order ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.CustomerID,
			&m.PayoutOrder,
			&m.JoinedAt,
			&m.ContributedPoints,
			&m.RewardsReceived,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// CreateMember inserts a membership. A unique violation on (group, customer)
// maps to ErrAlreadyMember.
func (r *Repository) CreateMember(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO group_memberships (group_id, customer_id, payout_order, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, m.GroupID, m.CustomerID, m.PayoutOrder, m.JoinedAt).Scan(&m.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyMember
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// UpdateMemberTotals writes a member's contributed and received totals
func (r *Repository) UpdateMemberTotals(ctx context.Context, m *Membership) error {
	query := `
		UPDATE group_memberships
		SET contributed_points = $2, rewards_received = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, m.ID, m.ContributedPoints, m.RewardsReceived)
	if err != nil {
		return fmt.Errorf("failed to update member totals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// CreateContribution inserts a contribution record
func (r *Repository) CreateContribution(ctx context.Context, c *Contribution) error {
	query := `
		INSERT INTO contributions (group_id, customer_id, membership_id, points, bonus_points, cycle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		c.GroupID,
		c.CustomerID,
		c.MembershipID,
		c.Points,
		c.BonusPoints,
		c.Cycle,
		c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create contribution: %w", err)
	}

	return nil
}

// ListContributions retrieves a group's contributions, oldest first
func (r *Repository) ListContributions(ctx context.Context, groupID int64) ([]*Contribution, error) {
	query := `
		SELECT id, group_id, customer_id, membership_id, points, bonus_points, cycle, created_at
		FROM contributions
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []*Contribution
	for rows.Next() {
		c := &Contribution{}
		if err := rows.Scan(
			&c.ID,
			&c.GroupID,
			&c.CustomerID,
			&c.MembershipID,
			&c.Points,
			&c.BonusPoints,
			&c.Cycle,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}

	return contributions, nil
}

// CreatePayout inserts a payout record
func (r *Repository) CreatePayout(ctx context.Context, p *Payout) error {
	query := `
		INSERT INTO payouts (group_id, recipient_id, membership_id, points, cycle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		p.GroupID,
		p.RecipientID,
		p.MembershipID,
		p.Points,
		p.Cycle,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

// ListPayouts retrieves a group's payouts, oldest first
func (r *Repository) ListPayouts(ctx context.Context, groupID int64) ([]*Payout, error) {
	query := `
		SELECT id, group_id, recipient_id, membership_id, points, cycle, created_at
		FROM payouts
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*Payout
	for rows.Next() {
		p := &Payout{}
		if err := rows.Scan(
			&p.ID,
			&p.GroupID,
			&p.RecipientID,
			&p.MembershipID,
			&p.Points,
			&p.Cycle,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}

	return payouts, nil
}

// ListGroupsForCustomer retrieves groups the customer created or joined, newest first
func (r *Repository) ListGroupsForCustomer(ctx context.Context, customerID int64) ([]*GroupSummary, error) {
	query := `
		SELECT` + groupColumns + `,
		       (SELECT COUNT(*) FROM group_memberships c WHERE c.group_id = g.id),
		       m.id, m.payout_order, m.joined_at, m.contributed_points, m.rewards_received
		FROM savings_groups g
		LEFT JOIN group_memberships m ON m.group_id = g.id AND m.customer_id = $1
		WHERE g.creator_id = $1 OR m.id IS NOT NULL
		ORDER BY g.created_at DESC, g.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer groups: %w", err)
	}
	defer rows.Close()

	var summaries []*GroupSummary
	for rows.Next() {
		var (
			g                            Group
			count                        int
			memberID                     sql.NullInt64
			payoutOrder                  sql.NullInt64
			joinedAt                     sql.NullTime
			contributed, rewardsReceived sql.NullInt64
		)
		dest := append(groupDest(&g), &count, &memberID, &payoutOrder, &joinedAt, &contributed, &rewardsReceived)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan customer group: %w", err)
		}

		summary := &GroupSummary{Group: &g, MemberCount: count}
		if memberID.Valid {
			summary.Membership = &Membership{
				ID:                memberID.Int64,
				GroupID:           g.ID,
				CustomerID:        customerID,
				PayoutOrder:       int(payoutOrder.Int64),
				JoinedAt:          joinedAt.Time,
				ContributedPoints: contributed.Int64,
				RewardsReceived:   rewardsReceived.Int64,
			}
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customer groups: %w", err)
	}

	return summaries, nil
}

// ListAvailableGroups retrieves approved groups with a free seat that the customer has not joined
func (r *Repository) ListAvailableGroups(ctx context.Context, customerID int64) ([]*GroupSummary, error) {
	query := `
		SELECT` + groupColumns + `, COUNT(m.id)
		FROM savings_groups g
		LEFT JOIN group_memberships m ON m.group_id = g.id
		WHERE g.status = 'approved'
		  AND NOT EXISTS (
		      SELECT 1 FROM group_memberships x WHERE x.group_id = g.id AND x.customer_id = $1
		  )
		GROUP BY g.id
		HAVING g.capacity IS NULL OR COUNT(m.id) < g.capacity
		ORDER BY g.created_at DESC, g.id DESC
	`

	return r.listSummaries(ctx, "available groups", query, customerID)
}

// ListGroupsForBusiness retrieves the groups hosted by a business, newest first
func (r *Repository) ListGroupsForBusiness(ctx context.Context, businessID int64, status Status) ([]*GroupSummary, error) {
	query := `
		SELECT` + groupColumns + `, COUNT(m.id)
		FROM savings_groups g
		LEFT JOIN group_memberships m ON m.group_id = g.id
		WHERE g.business_id = $1 AND ($2::text = '' OR g.status = $2::text)
		GROUP BY g.id
		ORDER BY g.created_at DESC, g.id DESC
	`

	return r.listSummaries(ctx, "business groups", query, businessID, string(status))
}

func (r *Repository) listSummaries(ctx context.Context, what, query string, args ...any) ([]*GroupSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	var summaries []*GroupSummary
	for rows.Next() {
		var (
			g     Group
			count int
		)
		if err := rows.Scan(append(groupDest(&g), &count)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		summaries = append(summaries, &GroupSummary{Group: &g, MemberCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}

	return summaries, nil
}

// ListPayoutCandidates retrieves approved groups holding unpaid bonus and at least one member
func (r *Repository) ListPayoutCandidates(ctx context.Context) ([]*Group, error) {
	query := `
		SELECT` + groupColumns + `
		FROM savings_groups g
		WHERE g.status = 'approved'
		  AND g.unpaid_bonus_points > 0
		  AND EXISTS (SELECT 1 FROM group_memberships m WHERE m.group_id = g.id)
		ORDER BY g.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payout candidates: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout candidate: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout candidates: %w", err)
	}

	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*Group, error) {
	g := &Group{}
	if err := row.Scan(groupDest(g)...); err != nil {
		return nil, err
	}
	return g, nil
}

func groupDest(g *Group) []any {
	return []any{
		&g.ID,
		&g.CreatorID,
		&g.BusinessID,
		&g.GoalLabel,
		&g.GoalPoints,
		&g.Cadence,
		&g.TermMonths,
		&g.Status,
		&g.Capacity,
		&g.DiscountRate,
		&g.PoolPoints,
		&g.UnpaidBonusPoints,
		&g.RotationPointer,
		&g.CreatedAt,
		&g.ApprovedAt,
		&g.CompletedAt,
		&g.LastPayoutAt,
		&g.CancelledAt,
	}
}

// PostgresStore runs atomic units as database transactions
type PostgresStore struct {
	*Repository
	db *sql.DB
}

// NewPostgresStore creates a store backed by PostgreSQL
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{Repository: NewRepository(db), db: db}
}

// WithinTx runs fn in a transaction with repositories bound to it
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(NewRepository(tx))
	})
}
