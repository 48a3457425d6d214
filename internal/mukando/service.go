package mukando

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

// Service runs the savings group lifecycle: registry, membership,
// contributions and the payout rotation.
type Service struct {
	store       Store
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
	minInterval time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithNotifier sets the receiver of post-commit lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMinPayoutInterval replaces the cadence period used by the payout sweep.
// Zero keeps the cadence period.
func WithMinPayoutInterval(d time.Duration) Option {
	return func(s *Service) { s.minInterval = d }
}

// NewService creates a new savings group service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// CreateGroupRequest records a customer's request for a new group at a business.
// The group starts in pending_approval.
func (s *Service) CreateGroupRequest(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error) {
	label := strings.TrimSpace(req.GoalLabel)
	switch {
	case label == "":
		return nil, apperror.Validation("goal_label is required")
	case req.GoalPoints <= 0:
		return nil, apperror.Validation("goal_points must be positive")
	case req.TermMonths <= 0:
		return nil, apperror.Validation("term_months must be positive")
	case !req.Cadence.Valid():
		return nil, apperror.Validation("cadence must be weekly or monthly")
	}

	g := &Group{
		CreatorID:  creatorID,
		BusinessID: req.BusinessID,
		GoalLabel:  label,
		GoalPoints: req.GoalPoints,
		Cadence:    req.Cadence,
		TermMonths: req.TermMonths,
		Status:     StatusPendingApproval,
		CreatedAt:  s.clock(),
	}

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.CustomerExists(ctx, creatorID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCustomerNotFound
		}

		ok, err = tx.BusinessExists(ctx, req.BusinessID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBusinessNotFound
		}

		return tx.CreateGroup(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Savings group requested",
		"group_id", g.ID, "creator_id", creatorID, "business_id", g.BusinessID, "goal_points", g.GoalPoints)
	return g, nil
}

// ApproveGroup opens a pending group for enrollment with the business-chosen
// capacity and discount rate.
func (s *Service) ApproveGroup(ctx context.Context, groupID, businessID int64, req *ApproveGroupRequest) (*Group, error) {
	if req.Capacity != nil && *req.Capacity <= 0 {
		return nil, apperror.Validation("capacity must be positive")
	}
	if req.DiscountRate != nil && (*req.DiscountRate < 0 || *req.DiscountRate > 100) {
		return nil, apperror.Validation("discount_rate must be between 0 and 100")
	}

	var g *Group
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		g, err = s.lockOwned(ctx, tx, groupID, businessID)
		if err != nil {
			return err
		}
		if g.Status != StatusPendingApproval {
			return errStatus("approve", g.Status)
		}

		now := s.clock()
		g.Status = StatusApproved
		g.Capacity = req.Capacity
		g.DiscountRate = req.DiscountRate
		g.ApprovedAt = &now
		return tx.UpdateGroup(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Savings group approved", "group_id", g.ID, "business_id", businessID)
	s.notify(ctx, "group approved", func(n Notifier) error {
		return n.NotifyGroupApproved(ctx, g.CreatorID, g.ID, g.GoalLabel)
	})
	return g, nil
}

// DeclineGroup is the business's refusal of a pending group.
func (s *Service) DeclineGroup(ctx context.Context, groupID, businessID int64) (*Group, error) {
	var g *Group
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		g, err = s.lockOwned(ctx, tx, groupID, businessID)
		if err != nil {
			return err
		}
		return s.cancelGroup(ctx, tx, g)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Savings group declined", "group_id", g.ID, "business_id", businessID)
	s.notify(ctx, "group declined", func(n Notifier) error {
		return n.NotifyGroupDeclined(ctx, g.CreatorID, g.ID, g.GoalLabel)
	})
	return g, nil
}

// cancelGroup moves a locked pending group to cancelled.
func (s *Service) cancelGroup(ctx context.Context, tx Tx, g *Group) error {
	if g.Status != StatusPendingApproval {
		return errStatus("cancel", g.Status)
	}
	now := s.clock()
	g.Status = StatusCancelled
	g.CancelledAt = &now
	return tx.UpdateGroup(ctx, g)
}

// completeGroup marks a locked approved group as completed. The caller persists g.
func (s *Service) completeGroup(g *Group, at time.Time) {
	g.Status = StatusCompleted
	g.CompletedAt = &at
}

func (s *Service) lockOwned(ctx context.Context, tx Tx, groupID, businessID int64) (*Group, error) {
	g, err := tx.LockGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	if g.BusinessID != businessID {
		return nil, ErrNotGroupBusiness
	}
	return g, nil
}

// GetGroup retrieves a group with its members in payout order
func (s *Service) GetGroup(ctx context.Context, groupID int64) (*Group, []*Membership, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, ErrGroupNotFound
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	return g, members, nil
}

// ListBusinessGroups retrieves the groups hosted by a business, optionally by status
func (s *Service) ListBusinessGroups(ctx context.Context, businessID int64, status Status) ([]*GroupSummary, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.Validation("unknown status %q", status)
	}
	return s.store.ListGroupsForBusiness(ctx, businessID, status)
}

// notify delivers a post-commit event. Delivery failures are logged only.
func (s *Service) notify(ctx context.Context, event string, send func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := send(s.notifier); err != nil {
		s.logger.Warn("Failed to deliver notification", "event", event, "error", err)
	}
}
