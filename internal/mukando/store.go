package mukando

import (
	"context"

	"github.com/fkhayef/smartrewards/internal/points"
)

// Tx is the set of persistence operations available inside one atomic unit.
// Getters return nil, nil when the row does not exist.
type Tx interface {
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
	BusinessExists(ctx context.Context, businessID int64) (bool, error)

	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, groupID int64) (*Group, error)
	// LockGroup reads the group and holds its row lock until the unit ends.
	LockGroup(ctx context.Context, groupID int64) (*Group, error)
	// UpdateGroup persists every mutable field of g.
	UpdateGroup(ctx context.Context, g *Group) error

	CountMembers(ctx context.Context, groupID int64) (int, error)
	GetMember(ctx context.Context, groupID, customerID int64) (*Membership, error)
	// ListMembers returns members ordered by payout order.
	ListMembers(ctx context.Context, groupID int64) ([]*Membership, error)
	CreateMember(ctx context.Context, m *Membership) error
	UpdateMemberTotals(ctx context.Context, m *Membership) error

	CreateContribution(ctx context.Context, c *Contribution) error
	ListContributions(ctx context.Context, groupID int64) ([]*Contribution, error)
	CreatePayout(ctx context.Context, p *Payout) error
	ListPayouts(ctx context.Context, groupID int64) ([]*Payout, error)

	ListGroupsForCustomer(ctx context.Context, customerID int64) ([]*GroupSummary, error)
	ListAvailableGroups(ctx context.Context, customerID int64) ([]*GroupSummary, error)
	// ListGroupsForBusiness filters by status unless status is empty.
	ListGroupsForBusiness(ctx context.Context, businessID int64, status Status) ([]*GroupSummary, error)
	// ListPayoutCandidates returns approved groups with members and unpaid bonus.
	ListPayoutCandidates(ctx context.Context) ([]*Group, error)

	// Ledger returns the point ledger bound to the same unit.
	Ledger() points.Ledger
}

// Store runs atomic units. Calls made directly on the Store are
// single-statement reads outside any unit.
type Store interface {
	Tx
	// WithinTx commits when fn returns nil and discards every write otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier is told about lifecycle events after they commit.
type Notifier interface {
	NotifyGroupApproved(ctx context.Context, recipientID, groupID int64, goalLabel string) error
	NotifyGroupDeclined(ctx context.Context, recipientID, groupID int64, goalLabel string) error
	NotifyPayoutReceived(ctx context.Context, recipientID, groupID int64, goalLabel string, amount int64) error
	NotifyGroupCompleted(ctx context.Context, recipientID, groupID int64, goalLabel string) error
}
