// Package memory is an in-process store for running without PostgreSQL and
// for tests. Every unit of work runs against a private copy of the state
// under a store-wide mutex; the copy replaces the live state only when the
// unit succeeds, so a failed unit leaves nothing behind.
//
// Stored records are never mutated in place. Writers store fresh copies and
// readers receive copies, which keeps snapshots cheap to take.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fkhayef/smartrewards/internal/mukando"
	"github.com/fkhayef/smartrewards/internal/notification"
	"github.com/fkhayef/smartrewards/internal/points"
)

type state struct {
	balances      map[int64]int64
	businesses    map[int64]struct{}
	groups        map[int64]*mukando.Group
	members       []*mukando.Membership
	contributions []*mukando.Contribution
	payouts       []*mukando.Payout
	entries       []*points.Entry
	notifications []*notification.Notification

	nextGroupID        int64
	nextMemberID       int64
	nextContributionID int64
	nextPayoutID       int64
	nextEntryID        int64
	nextNotificationID int64
}

func newState() *state {
	return &state{
		balances:   make(map[int64]int64),
		businesses: make(map[int64]struct{}),
		groups:     make(map[int64]*mukando.Group),
	}
}

func (s *state) clone() *state {
	c := *s
	c.balances = make(map[int64]int64, len(s.balances))
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.businesses = make(map[int64]struct{}, len(s.businesses))
	for k := range s.businesses {
		c.businesses[k] = struct{}{}
	}
	c.groups = make(map[int64]*mukando.Group, len(s.groups))
	for k, v := range s.groups {
		c.groups[k] = v
	}
	c.members = append([]*mukando.Membership(nil), s.members...)
	c.contributions = append([]*mukando.Contribution(nil), s.contributions...)
	c.payouts = append([]*mukando.Payout(nil), s.payouts...)
	c.entries = append([]*points.Entry(nil), s.entries...)
	c.notifications = append([]*notification.Notification(nil), s.notifications...)
	return &c
}

// Store is the in-memory implementation of the savings group, point and
// notification stores.
type Store struct {
	mu sync.Mutex
	st *state
}

var (
	_ mukando.Store      = (*Store)(nil)
	_ points.Reader      = (*Store)(nil)
	_ notification.Store = (*Notifications)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

// AddCustomer registers a customer with an opening balance.
func (s *Store) AddCustomer(id, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balances[id] = balance
}

// AddBusiness registers a business.
func (s *Store) AddBusiness(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.businesses[id] = struct{}{}
}

// WithinTx runs fn against a snapshot and publishes it only on success.
func (s *Store) WithinTx(ctx context.Context, fn func(tx mukando.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// read runs fn against the live state under the lock.
func (s *Store) read(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st})
}

// Ledger returns a point ledger whose calls each commit immediately.
func (s *Store) Ledger() points.Ledger {
	return &storeLedger{s: s}
}

// view implements mukando.Tx over one state value without locking.
type view struct {
	st *state
}

func (v *view) Ledger() points.Ledger {
	return &ledger{st: v.st}
}

func (v *view) CustomerExists(_ context.Context, customerID int64) (bool, error) {
	_, ok := v.st.balances[customerID]
	return ok, nil
}

func (v *view) BusinessExists(_ context.Context, businessID int64) (bool, error) {
	_, ok := v.st.businesses[businessID]
	return ok, nil
}

func (v *view) CreateGroup(_ context.Context, g *mukando.Group) error {
	v.st.nextGroupID++
	g.ID = v.st.nextGroupID
	cp := *g
	v.st.groups[g.ID] = &cp
	return nil
}

func (v *view) GetGroup(_ context.Context, groupID int64) (*mukando.Group, error) {
	g, ok := v.st.groups[groupID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// LockGroup needs no extra locking: the unit already holds the store mutex.
func (v *view) LockGroup(ctx context.Context, groupID int64) (*mukando.Group, error) {
	return v.GetGroup(ctx, groupID)
}

func (v *view) UpdateGroup(_ context.Context, g *mukando.Group) error {
	if _, ok := v.st.groups[g.ID]; !ok {
		return mukando.ErrGroupNotFound
	}
	cp := *g
	v.st.groups[g.ID] = &cp
	return nil
}

func (v *view) CountMembers(_ context.Context, groupID int64) (int, error) {
	return v.countMembers(groupID), nil
}

func (v *view) countMembers(groupID int64) int {
	n := 0
	for _, m := range v.st.members {
		if m.GroupID == groupID {
			n++
		}
	}
	return n
}

func (v *view) GetMember(_ context.Context, groupID, customerID int64) (*mukando.Membership, error) {
	m := v.member(groupID, customerID)
	if m == nil {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (v *view) member(groupID, customerID int64) *mukando.Membership {
	for _, m := range v.st.members {
		if m.GroupID == groupID && m.CustomerID == customerID {
			return m
		}
	}
	return nil
}

func (v *view) ListMembers(_ context.Context, groupID int64) ([]*mukando.Membership, error) {
	var out []*mukando.Membership
	for _, m := range v.st.members {
		if m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayoutOrder < out[j].PayoutOrder })
	return out, nil
}

func (v *view) CreateMember(_ context.Context, m *mukando.Membership) error {
	if v.member(m.GroupID, m.CustomerID) != nil {
		return mukando.ErrAlreadyMember
	}
	v.st.nextMemberID++
	m.ID = v.st.nextMemberID
	cp := *m
	v.st.members = append(v.st.members, &cp)
	return nil
}

func (v *view) UpdateMemberTotals(_ context.Context, m *mukando.Membership) error {
	for i, existing := range v.st.members {
		if existing.ID == m.ID {
			cp := *existing
			cp.ContributedPoints = m.ContributedPoints
			cp.RewardsReceived = m.RewardsReceived
			v.st.members[i] = &cp
			return nil
		}
	}
	return mukando.ErrMemberNotFound
}

func (v *view) CreateContribution(_ context.Context, c *mukando.Contribution) error {
	v.st.nextContributionID++
	c.ID = v.st.nextContributionID
	cp := *c
	v.st.contributions = append(v.st.contributions, &cp)
	return nil
}

func (v *view) ListContributions(_ context.Context, groupID int64) ([]*mukando.Contribution, error) {
	var out []*mukando.Contribution
	for _, c := range v.st.contributions {
		if c.GroupID == groupID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (v *view) CreatePayout(_ context.Context, p *mukando.Payout) error {
	v.st.nextPayoutID++
	p.ID = v.st.nextPayoutID
	cp := *p
	v.st.payouts = append(v.st.payouts, &cp)
	return nil
}

func (v *view) ListPayouts(_ context.Context, groupID int64) ([]*mukando.Payout, error) {
	var out []*mukando.Payout
	for _, p := range v.st.payouts {
		if p.GroupID == groupID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (v *view) ListGroupsForCustomer(_ context.Context, customerID int64) ([]*mukando.GroupSummary, error) {
	var out []*mukando.GroupSummary
	for _, g := range v.sortedGroups() {
		m := v.member(g.ID, customerID)
		if g.CreatorID != customerID && m == nil {
			continue
		}
		summary := v.summary(g)
		if m != nil {
			cp := *m
			summary.Membership = &cp
		}
		out = append(out, summary)
	}
	return out, nil
}

func (v *view) ListAvailableGroups(_ context.Context, customerID int64) ([]*mukando.GroupSummary, error) {
	var out []*mukando.GroupSummary
	for _, g := range v.sortedGroups() {
		if g.Status != mukando.StatusApproved || v.member(g.ID, customerID) != nil {
			continue
		}
		summary := v.summary(g)
		if g.Full(summary.MemberCount) {
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

func (v *view) ListGroupsForBusiness(_ context.Context, businessID int64, status mukando.Status) ([]*mukando.GroupSummary, error) {
	var out []*mukando.GroupSummary
	for _, g := range v.sortedGroups() {
		if g.BusinessID != businessID || (status != "" && g.Status != status) {
			continue
		}
		out = append(out, v.summary(g))
	}
	return out, nil
}

func (v *view) ListPayoutCandidates(_ context.Context) ([]*mukando.Group, error) {
	var out []*mukando.Group
	for _, g := range v.sortedGroups() {
		if g.Status != mukando.StatusApproved || g.UnpaidBonusPoints <= 0 || v.countMembers(g.ID) == 0 {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// sortedGroups returns the live group records newest first.
func (v *view) sortedGroups() []*mukando.Group {
	groups := make([]*mukando.Group, 0, len(v.st.groups))
	for _, g := range v.st.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.After(groups[j].CreatedAt)
		}
		return groups[i].ID > groups[j].ID
	})
	return groups
}

func (v *view) summary(g *mukando.Group) *mukando.GroupSummary {
	cp := *g
	return &mukando.GroupSummary{Group: &cp, MemberCount: v.countMembers(g.ID)}
}

// Store-level calls: each runs alone under the mutex.

func (s *Store) CustomerExists(ctx context.Context, customerID int64) (ok bool, err error) {
	err = s.read(func(v *view) error { ok, err = v.CustomerExists(ctx, customerID); return err })
	return ok, err
}

func (s *Store) BusinessExists(ctx context.Context, businessID int64) (ok bool, err error) {
	err = s.read(func(v *view) error { ok, err = v.BusinessExists(ctx, businessID); return err })
	return ok, err
}

func (s *Store) CreateGroup(ctx context.Context, g *mukando.Group) error {
	return s.read(func(v *view) error { return v.CreateGroup(ctx, g) })
}

func (s *Store) GetGroup(ctx context.Context, groupID int64) (g *mukando.Group, err error) {
	err = s.read(func(v *view) error { g, err = v.GetGroup(ctx, groupID); return err })
	return g, err
}

func (s *Store) LockGroup(ctx context.Context, groupID int64) (*mukando.Group, error) {
	return s.GetGroup(ctx, groupID)
}

func (s *Store) UpdateGroup(ctx context.Context, g *mukando.Group) error {
	return s.read(func(v *view) error { return v.UpdateGroup(ctx, g) })
}

func (s *Store) CountMembers(ctx context.Context, groupID int64) (n int, err error) {
	err = s.read(func(v *view) error { n, err = v.CountMembers(ctx, groupID); return err })
	return n, err
}

func (s *Store) GetMember(ctx context.Context, groupID, customerID int64) (m *mukando.Membership, err error) {
	err = s.read(func(v *view) error { m, err = v.GetMember(ctx, groupID, customerID); return err })
	return m, err
}

func (s *Store) ListMembers(ctx context.Context, groupID int64) (out []*mukando.Membership, err error) {
	err = s.read(func(v *view) error { out, err = v.ListMembers(ctx, groupID); return err })
	return out, err
}

func (s *Store) CreateMember(ctx context.Context, m *mukando.Membership) error {
	return s.read(func(v *view) error { return v.CreateMember(ctx, m) })
}

func (s *Store) UpdateMemberTotals(ctx context.Context, m *mukando.Membership) error {
	return s.read(func(v *view) error { return v.UpdateMemberTotals(ctx, m) })
}

func (s *Store) CreateContribution(ctx context.Context, c *mukando.Contribution) error {
	return s.read(func(v *view) error { return v.CreateContribution(ctx, c) })
}

func (s *Store) ListContributions(ctx context.Context, groupID int64) (out []*mukando.Contribution, err error) {
	err = s.read(func(v *view) error { out, err = v.ListContributions(ctx, groupID); return err })
	return out, err
}

func (s *Store) CreatePayout(ctx context.Context, p *mukando.Payout) error {
	return s.read(func(v *view) error { return v.CreatePayout(ctx, p) })
}

func (s *Store) ListPayouts(ctx context.Context, groupID int64) (out []*mukando.Payout, err error) {
	err = s.read(func(v *view) error { out, err = v.ListPayouts(ctx, groupID); return err })
	return out, err
}

func (s *Store) ListGroupsForCustomer(ctx context.Context, customerID int64) (out []*mukando.GroupSummary, err error) {
	err = s.read(func(v *view) error { out, err = v.ListGroupsForCustomer(ctx, customerID); return err })
	return out, err
}

func (s *Store) ListAvailableGroups(ctx context.Context, customerID int64) (out []*mukando.GroupSummary, err error) {
	err = s.read(func(v *view) error { out, err = v.ListAvailableGroups(ctx, customerID); return err })
	return out, err
}

func (s *Store) ListGroupsForBusiness(ctx context.Context, businessID int64, status mukando.Status) (out []*mukando.GroupSummary, err error) {
	err = s.read(func(v *view) error { out, err = v.ListGroupsForBusiness(ctx, businessID, status); return err })
	return out, err
}

func (s *Store) ListPayoutCandidates(ctx context.Context) (out []*mukando.Group, err error) {
	err = s.read(func(v *view) error { out, err = v.ListPayoutCandidates(ctx); return err })
	return out, err
}
