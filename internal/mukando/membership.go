package mukando

import (
	"context"
)

// JoinGroup enrolls a customer in an approved group. Payout order is the
// member count at join time, assigned under the group lock.
func (s *Service) JoinGroup(ctx context.Context, groupID, customerID int64) (*Membership, error) {
	var m *Membership
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		g, err := tx.LockGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		ok, err := tx.CustomerExists(ctx, customerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCustomerNotFound
		}

		if g.Status != StatusApproved {
			return errStatus("join", g.Status)
		}

		existing, err := tx.GetMember(ctx, groupID, customerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyMember
		}

		count, err := tx.CountMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if g.Full(count) {
			return ErrGroupFull
		}

		m = &Membership{
			GroupID:     groupID,
			CustomerID:  customerID,
			PayoutOrder: count,
			JoinedAt:    s.clock(),
		}
		return tx.CreateMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Customer joined savings group",
		"group_id", groupID, "customer_id", customerID, "payout_order", m.PayoutOrder)
	return m, nil
}

// ListMyGroups retrieves the groups a customer created or joined, newest first
func (s *Service) ListMyGroups(ctx context.Context, customerID int64) ([]*GroupSummary, error) {
	return s.store.ListGroupsForCustomer(ctx, customerID)
}

// ListAvailableGroups retrieves approved groups with a free seat the customer could join
func (s *Service) ListAvailableGroups(ctx context.Context, customerID int64) ([]*GroupSummary, error) {
	return s.store.ListAvailableGroups(ctx, customerID)
}
