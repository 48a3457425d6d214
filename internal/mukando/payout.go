package mukando

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/smartrewards/internal/points"
	"github.com/fkhayef/smartrewards/pkg/apperror"
	"github.com/fkhayef/smartrewards/pkg/metrics"
)

// PayoutResult is the outcome of one distribution
type PayoutResult struct {
	GroupID            int64 `json:"group_id"`
	RecipientID        int64 `json:"recipient_id"`
	Amount             int64 `json:"amount"`
	NewRotationPointer int   `json:"new_rotation_pointer"`
	Completed          bool  `json:"completed"`
}

// SweepFailure names a group the sweep could not distribute
type SweepFailure struct {
	GroupID int64  `json:"group_id"`
	Error   string `json:"error"`
}

// SweepReport summarises one payout sweep
type SweepReport struct {
	RunID    string          `json:"run_id"`
	Payouts  []*PayoutResult `json:"payouts"`
	Skipped  int             `json:"skipped"`
	Failures []SweepFailure  `json:"failures"`
}

// NextPayoutAt returns when a group becomes eligible for its next payout.
// The reference is the last payout, or approval before the first one.
func (s *Service) NextPayoutAt(g *Group) (time.Time, bool) {
	ref := g.ApprovedAt
	if g.LastPayoutAt != nil {
		ref = g.LastPayoutAt
	}
	if ref == nil {
		return time.Time{}, false
	}

	if s.minInterval > 0 {
		return ref.Add(s.minInterval), true
	}
	if g.Cadence == CadenceWeekly {
		return ref.AddDate(0, 0, 7), true
	}
	return ref.AddDate(0, 1, 0), true
}

func (s *Service) matured(g *Group, now time.Time) bool {
	next, ok := s.NextPayoutAt(g)
	if !ok {
		return true
	}
	return !now.Before(next)
}

// Distribute pays the whole unpaid bonus of a group to the member at the
// rotation pointer, without waiting for the payout period.
func (s *Service) Distribute(ctx context.Context, groupID int64) (*PayoutResult, error) {
	return s.distribute(ctx, groupID, false)
}

func (s *Service) distribute(ctx context.Context, groupID int64, requireMatured bool) (*PayoutResult, error) {
	var (
		g         *Group
		members   []*Membership
		recipient *Membership
		result    *PayoutResult
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		g, err = tx.LockGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}
		if g.Status != StatusApproved {
			return errStatus("distribute", g.Status)
		}
		if g.UnpaidBonusPoints <= 0 {
			return ErrNothingToDistribute
		}

		now := s.clock()
		if requireMatured && !s.matured(g, now) {
			return ErrNotMatured
		}

		members, err = tx.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return ErrNoMembers
		}

		recipient = members[g.RotationPointer%len(members)]
		amount := g.UnpaidBonusPoints
		cycle := g.RotationPointer + 1

		ledger := tx.Ledger()
		if _, err := ledger.AdjustBalance(ctx, recipient.CustomerID, amount); err != nil {
			return err
		}
		err = ledger.AppendEntry(ctx, &points.Entry{
			CustomerID: recipient.CustomerID,
			BusinessID: &g.BusinessID,
			Type:       points.EntryMukandoPayout,
			Amount:     amount,
			GroupID:    &g.ID,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		p := &Payout{
			GroupID:      groupID,
			RecipientID:  recipient.CustomerID,
			MembershipID: recipient.ID,
			Points:       amount,
			Cycle:        cycle,
			CreatedAt:    now,
		}
		if err := tx.CreatePayout(ctx, p); err != nil {
			return err
		}

		recipient.RewardsReceived += amount
		if err := tx.UpdateMemberTotals(ctx, recipient); err != nil {
			return err
		}

		g.RotationPointer++
		g.UnpaidBonusPoints = 0
		g.LastPayoutAt = &now
		completed := g.RotationPointer >= len(members)
		if completed {
			s.completeGroup(g, now)
		}
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return err
		}

		result = &PayoutResult{
			GroupID:            groupID,
			RecipientID:        recipient.CustomerID,
			Amount:             amount,
			NewRotationPointer: g.RotationPointer,
			Completed:          completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayout("ok", result.Amount)
	s.logger.Info("Payout distributed",
		"group_id", groupID, "recipient_id", result.RecipientID, "amount", result.Amount,
		"rotation_pointer", result.NewRotationPointer, "completed", result.Completed)

	s.notify(ctx, "payout received", func(n Notifier) error {
		return n.NotifyPayoutReceived(ctx, result.RecipientID, groupID, g.GoalLabel, result.Amount)
	})
	if result.Completed {
		for _, m := range members {
			s.notify(ctx, "group completed", func(n Notifier) error {
				return n.NotifyGroupCompleted(ctx, m.CustomerID, groupID, g.GoalLabel)
			})
		}
	}
	return result, nil
}

// RunPayoutSweep distributes every matured group in its own unit. A failing
// group is reported and the sweep moves on.
func (s *Service) RunPayoutSweep(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(start)) }()

	report := &SweepReport{
		RunID:    uuid.NewString(),
		Payouts:  []*PayoutResult{},
		Failures: []SweepFailure{},
	}
	logger := s.logger.With("run_id", report.RunID)

	candidates, err := s.store.ListPayoutCandidates(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	for _, g := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.matured(g, now) {
			report.Skipped++
			continue
		}

		result, err := s.distribute(ctx, g.ID, true)
		if err != nil {
			// The group changed between listing and locking.
			if errors.Is(err, apperror.ErrInvalidState) {
				report.Skipped++
				logger.Debug("Skipping payout candidate", "group_id", g.ID, "reason", err)
				continue
			}
			metrics.RecordPayout("failed", 0)
			logger.Error("Failed to distribute payout", "group_id", g.ID, "error", err)
			report.Failures = append(report.Failures, SweepFailure{GroupID: g.ID, Error: err.Error()})
			continue
		}
		report.Payouts = append(report.Payouts, result)
	}

	logger.Info("Payout sweep finished",
		"candidates", len(candidates), "paid", len(report.Payouts),
		"skipped", report.Skipped, "failed", len(report.Failures))
	return report, nil
}

// ListPayouts retrieves a group's payout history, oldest first
func (s *Service) ListPayouts(ctx context.Context, groupID int64) ([]*Payout, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return s.store.ListPayouts(ctx, groupID)
}
