package mukando

import (
	"math"
	"time"
)

const timeLayout = "2006-01-02T15:04:05Z"

// CreateGroupRequest represents a customer's request for a new savings group
type CreateGroupRequest struct {
	BusinessID int64   `json:"business_id"`
	GoalLabel  string  `json:"goal_label"`
	GoalPoints int64   `json:"goal_points"`
	Cadence    Cadence `json:"cadence"`
	TermMonths int     `json:"term_months"`
}

// ApproveGroupRequest carries the business's approval terms
type ApproveGroupRequest struct {
	Capacity     *int     `json:"capacity,omitempty"`
	DiscountRate *float64 `json:"discount_rate,omitempty"`
}

// ContributeRequest represents a contribution into a group pool
type ContributeRequest struct {
	Points int64 `json:"points"`
}

// GroupResponse represents the response for a savings group
type GroupResponse struct {
	ID                int64             `json:"id"`
	CreatorID         int64             `json:"creator_id"`
	BusinessID        int64             `json:"business_id"`
	GoalLabel         string            `json:"goal_label"`
	GoalPoints        int64             `json:"goal_points"`
	Cadence           Cadence           `json:"cadence"`
	TermMonths        int               `json:"term_months"`
	Status            Status            `json:"status"`
	Capacity          *int              `json:"capacity,omitempty"`
	DiscountRate      *float64          `json:"discount_rate,omitempty"`
	PoolPoints        int64             `json:"pool_points"`
	GoalPercentage    float64           `json:"goal_percentage"`
	UnpaidBonusPoints int64             `json:"unpaid_bonus_points"`
	RotationPointer   int               `json:"rotation_pointer"`
	MemberCount       *int              `json:"member_count,omitempty"`
	CreatedAt         string            `json:"created_at"`
	ApprovedAt        *string           `json:"approved_at,omitempty"`
	CompletedAt       *string           `json:"completed_at,omitempty"`
	LastPayoutAt      *string           `json:"last_payout_at,omitempty"`
	CancelledAt       *string           `json:"cancelled_at,omitempty"`
	NextPayoutAt      *string           `json:"next_payout_at,omitempty"`
	Members           []*MemberResponse `json:"members,omitempty"`
	Membership        *MemberResponse   `json:"membership,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID                int64  `json:"id"`
	CustomerID        int64  `json:"customer_id"`
	PayoutOrder       int    `json:"payout_order"`
	ContributedPoints int64  `json:"contributed_points"`
	RewardsReceived   int64  `json:"rewards_received"`
	JoinedAt          string `json:"joined_at"`
}

// ContributionResponse represents a contribution record
type ContributionResponse struct {
	ID          int64  `json:"id"`
	CustomerID  int64  `json:"customer_id"`
	Points      int64  `json:"points"`
	BonusPoints int64  `json:"bonus_points"`
	Cycle       int    `json:"cycle"`
	CreatedAt   string `json:"created_at"`
}

// ContributeResponse represents the outcome of a contribution
type ContributeResponse struct {
	PoolPoints       int64                 `json:"pool_points"`
	GoalPercentage   float64               `json:"goal_percentage"`
	RemainingBalance int64                 `json:"remaining_balance"`
	BonusPoints      int64                 `json:"bonus_points"`
	Contribution     *ContributionResponse `json:"contribution"`
}

// PayoutResponse represents a payout record
type PayoutResponse struct {
	ID          int64  `json:"id"`
	RecipientID int64  `json:"recipient_id"`
	Points      int64  `json:"points"`
	Cycle       int    `json:"cycle"`
	CreatedAt   string `json:"created_at"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:                g.ID,
		CreatorID:         g.CreatorID,
		BusinessID:        g.BusinessID,
		GoalLabel:         g.GoalLabel,
		GoalPoints:        g.GoalPoints,
		Cadence:           g.Cadence,
		TermMonths:        g.TermMonths,
		Status:            g.Status,
		Capacity:          g.Capacity,
		DiscountRate:      g.DiscountRate,
		PoolPoints:        g.PoolPoints,
		GoalPercentage:    roundPercent(g.GoalPercentage()),
		UnpaidBonusPoints: g.UnpaidBonusPoints,
		RotationPointer:   g.RotationPointer,
		CreatedAt:         g.CreatedAt.UTC().Format(timeLayout),
		ApprovedAt:        formatTime(g.ApprovedAt),
		CompletedAt:       formatTime(g.CompletedAt),
		LastPayoutAt:      formatTime(g.LastPayoutAt),
		CancelledAt:       formatTime(g.CancelledAt),
	}
}

// ToResponse converts a GroupSummary to a GroupResponse DTO
func (s *GroupSummary) ToResponse() *GroupResponse {
	resp := s.Group.ToResponse()
	count := s.MemberCount
	resp.MemberCount = &count
	if s.Membership != nil {
		resp.Membership = s.Membership.ToResponse()
	}
	return resp
}

// ToResponse converts a Membership model to a MemberResponse DTO
func (m *Membership) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:                m.ID,
		CustomerID:        m.CustomerID,
		PayoutOrder:       m.PayoutOrder,
		ContributedPoints: m.ContributedPoints,
		RewardsReceived:   m.RewardsReceived,
		JoinedAt:          m.JoinedAt.UTC().Format(timeLayout),
	}
}

// ToResponse converts a Contribution model to a ContributionResponse DTO
func (c *Contribution) ToResponse() *ContributionResponse {
	return &ContributionResponse{
		ID:          c.ID,
		CustomerID:  c.CustomerID,
		Points:      c.Points,
		BonusPoints: c.BonusPoints,
		Cycle:       c.Cycle,
		CreatedAt:   c.CreatedAt.UTC().Format(timeLayout),
	}
}

// ToResponse converts a ContributeResult to a ContributeResponse DTO
func (r *ContributeResult) ToResponse() *ContributeResponse {
	return &ContributeResponse{
		PoolPoints:       r.PoolPoints,
		GoalPercentage:   roundPercent(r.GoalPercentage),
		RemainingBalance: r.RemainingBalance,
		BonusPoints:      r.BonusPoints,
		Contribution:     r.Contribution.ToResponse(),
	}
}

// ToResponse converts a Payout model to a PayoutResponse DTO
func (p *Payout) ToResponse() *PayoutResponse {
	return &PayoutResponse{
		ID:          p.ID,
		RecipientID: p.RecipientID,
		Points:      p.Points,
		Cycle:       p.Cycle,
		CreatedAt:   p.CreatedAt.UTC().Format(timeLayout),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

func roundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
