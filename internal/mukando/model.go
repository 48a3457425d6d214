package mukando

import "time"

// Status represents the lifecycle state of a savings group
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Cadence is the expected contribution rhythm of a group
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == CadenceWeekly || c == CadenceMonthly
}

// Group is a Mukando rotating savings group hosted by a business
type Group struct {
	ID         int64   `json:"id"`
	CreatorID  int64   `json:"creator_id"`
	BusinessID int64   `json:"business_id"`
	GoalLabel  string  `json:"goal_label"`
	GoalPoints int64   `json:"goal_points"`
	Cadence    Cadence `json:"cadence"`
	TermMonths int     `json:"term_months"`
	Status     Status  `json:"status"`

	// Set at approval.
	Capacity     *int     `json:"capacity,omitempty"`
	DiscountRate *float64 `json:"discount_rate,omitempty"`

	// PoolPoints is the lifetime total contributed toward the goal.
	PoolPoints int64 `json:"pool_points"`
	// UnpaidBonusPoints accrues from contributions and is paid out in full
	// to the next recipient.
	UnpaidBonusPoints int64 `json:"unpaid_bonus_points"`
	RotationPointer   int   `json:"rotation_pointer"`

	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastPayoutAt *time.Time `json:"last_payout_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// GoalPercentage is pool/goal*100. It may exceed 100.
func (g *Group) GoalPercentage() float64 {
	if g.GoalPoints <= 0 {
		return 0
	}
	return float64(g.PoolPoints) / float64(g.GoalPoints) * 100
}

// Full reports whether the group has reached its capacity.
func (g *Group) Full(memberCount int) bool {
	return g.Capacity != nil && memberCount >= *g.Capacity
}

// Membership is a customer's seat in a group
type Membership struct {
	ID                int64     `json:"id"`
	GroupID           int64     `json:"group_id"`
	CustomerID        int64     `json:"customer_id"`
	PayoutOrder       int       `json:"payout_order"`
	JoinedAt          time.Time `json:"joined_at"`
	ContributedPoints int64     `json:"contributed_points"`
	RewardsReceived   int64     `json:"rewards_received"`
}

// Contribution is one member's deposit into the pool
type Contribution struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	CustomerID   int64     `json:"customer_id"`
	MembershipID int64     `json:"membership_id"`
	Points       int64     `json:"points"`
	BonusPoints  int64     `json:"bonus_points"`
	Cycle        int       `json:"cycle"`
	CreatedAt    time.Time `json:"created_at"`
}

// Payout is one distribution of the unpaid bonus to a rotation recipient
type Payout struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	RecipientID  int64     `json:"recipient_id"`
	MembershipID int64     `json:"membership_id"`
	Points       int64     `json:"points"`
	Cycle        int       `json:"cycle"`
	CreatedAt    time.Time `json:"created_at"`
}

// GroupSummary is a group row as shown in listings
type GroupSummary struct {
	Group       *Group
	MemberCount int
	// Membership is the caller's seat, when listing a customer's groups.
	Membership *Membership
}
