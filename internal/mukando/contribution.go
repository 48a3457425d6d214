package mukando

import (
	"context"

	"github.com/fkhayef/smartrewards/internal/points"
	"github.com/fkhayef/smartrewards/pkg/apperror"
	"github.com/fkhayef/smartrewards/pkg/metrics"
)

// BonusRatePercent is the share of each contribution minted as bonus points.
const BonusRatePercent = 10

// ContributeResult is the outcome of a successful contribution
type ContributeResult struct {
	PoolPoints       int64
	GoalPercentage   float64
	RemainingBalance int64
	BonusPoints      int64
	Contribution     *Contribution
}

// BonusFor returns the bonus minted for a contribution, rounded down.
func BonusFor(points int64) int64 {
	return points * BonusRatePercent / 100
}

// Contribute moves points from a member's balance into the group pool and
// accrues the bonus for the next payout. Every write happens in one unit.
func (s *Service) Contribute(ctx context.Context, groupID, customerID, amount int64) (*ContributeResult, error) {
	if amount <= 0 {
		metrics.RecordContribution("rejected", 0)
		return nil, apperror.Validation("points must be positive")
	}

	var result *ContributeResult
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		ledger := tx.Ledger()

		balance, err := ledger.GetBalance(ctx, customerID)
		if err != nil {
			return err
		}
		if balance < amount {
			return points.ErrInsufficientBalance
		}

		g, err := tx.LockGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}
		if g.Status != StatusApproved {
			return errStatus("contribute to", g.Status)
		}

		m, err := tx.GetMember(ctx, groupID, customerID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNotAMember
		}

		now := s.clock()
		bonus := BonusFor(amount)

		remaining, err := ledger.AdjustBalance(ctx, customerID, -amount)
		if err != nil {
			return err
		}

		g.PoolPoints += amount
		g.UnpaidBonusPoints += bonus
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return err
		}

		m.ContributedPoints += amount
		if err := tx.UpdateMemberTotals(ctx, m); err != nil {
			return err
		}

		c := &Contribution{
			GroupID:      groupID,
			CustomerID:   customerID,
			MembershipID: m.ID,
			Points:       amount,
			BonusPoints:  bonus,
			Cycle:        g.RotationPointer + 1,
			CreatedAt:    now,
		}
		if err := tx.CreateContribution(ctx, c); err != nil {
			return err
		}

		err = ledger.AppendEntry(ctx, &points.Entry{
			CustomerID: customerID,
			BusinessID: &g.BusinessID,
			Type:       points.EntryMukandoContribution,
			Amount:     -amount,
			GroupID:    &g.ID,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		result = &ContributeResult{
			PoolPoints:       g.PoolPoints,
			GoalPercentage:   g.GoalPercentage(),
			RemainingBalance: remaining,
			BonusPoints:      bonus,
			Contribution:     c,
		}
		return nil
	})
	if err != nil {
		metrics.RecordContribution("failed", 0)
		return nil, err
	}

	metrics.RecordContribution("ok", amount)
	s.logger.Info("Contribution recorded",
		"group_id", groupID, "customer_id", customerID, "points", amount,
		"bonus", result.BonusPoints, "pool", result.PoolPoints)
	return result, nil
}

// ListContributions retrieves a group's contributions, oldest first
func (s *Service) ListContributions(ctx context.Context, groupID int64) ([]*Contribution, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return s.store.ListContributions(ctx, groupID)
}
