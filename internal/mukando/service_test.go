package mukando_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/smartrewards/internal/mukando"
	"github.com/fkhayef/smartrewards/internal/points"
	"github.com/fkhayef/smartrewards/internal/storage/memory"
	"github.com/fkhayef/smartrewards/pkg/apperror"
)

const (
	business      int64 = 100
	otherBusiness int64 = 200
	alice         int64 = 1
	bob           int64 = 2
	carol         int64 = 3
	dave          int64 = 4
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) AddDate(years, months, days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(years, months, days)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) NotifyGroupApproved(_ context.Context, recipientID, _ int64, _ string) error {
	return n.record("approved")
}

func (n *recordingNotifier) NotifyGroupDeclined(_ context.Context, recipientID, _ int64, _ string) error {
	return n.record("declined")
}

func (n *recordingNotifier) NotifyPayoutReceived(_ context.Context, recipientID, _ int64, _ string, _ int64) error {
	return n.record("payout")
}

func (n *recordingNotifier) NotifyGroupCompleted(_ context.Context, recipientID, _ int64, _ string) error {
	return n.record("completed")
}

type fixture struct {
	svc      *mukando.Service
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...mukando.Option) *fixture {
	t.Helper()
	store := memory.New()
	store.AddBusiness(business)
	store.AddBusiness(otherBusiness)
	for _, id := range []int64{alice, bob, carol, dave} {
		store.AddCustomer(id, 500)
	}
	return newFixtureWithStore(t, store, store, opts...)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store mukando.Store, opts ...mukando.Option) *fixture {
	t.Helper()
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	opts = append([]mukando.Option{
		mukando.WithClock(clock.Now),
		mukando.WithNotifier(notifier),
	}, opts...)
	return &fixture{
		svc:      mukando.NewService(store, opts...),
		store:    mem,
		clock:    clock,
		notifier: notifier,
	}
}

func (f *fixture) createGroup(t *testing.T, cadence mukando.Cadence) *mukando.Group {
	t.Helper()
	g, err := f.svc.CreateGroupRequest(context.Background(), alice, &mukando.CreateGroupRequest{
		BusinessID: business,
		GoalLabel:  "School fees",
		GoalPoints: 1000,
		Cadence:    cadence,
		TermMonths: 12,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) approvedGroup(t *testing.T, capacity *int) *mukando.Group {
	t.Helper()
	g := f.createGroup(t, mukando.CadenceMonthly)
	discount := 15.0
	g, err := f.svc.ApproveGroup(context.Background(), g.ID, business, &mukando.ApproveGroupRequest{
		Capacity:     capacity,
		DiscountRate: &discount,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) join(t *testing.T, groupID int64, customers ...int64) {
	t.Helper()
	for _, c := range customers {
		_, err := f.svc.JoinGroup(context.Background(), groupID, c)
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, customerID int64) int64 {
	t.Helper()
	b, err := f.store.GetBalance(context.Background(), customerID)
	require.NoError(t, err)
	return b
}

func (f *fixture) group(t *testing.T, groupID int64) *mukando.Group {
	t.Helper()
	g, _, err := f.svc.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	return g
}

func intPtr(v int) *int { return &v }

func TestCreateGroupRequest(t *testing.T) {
	f := newFixture(t)

	g := f.createGroup(t, mukando.CadenceWeekly)

	assert.NotZero(t, g.ID)
	assert.Equal(t, mukando.StatusPendingApproval, g.Status)
	assert.Equal(t, alice, g.CreatorID)
	assert.Zero(t, g.PoolPoints)
	assert.Zero(t, g.RotationPointer)
	assert.Nil(t, g.ApprovedAt)
}

func TestCreateGroupRequest_Validation(t *testing.T) {
	f := newFixture(t)
	valid := mukando.CreateGroupRequest{
		BusinessID: business, GoalLabel: "Bicycle", GoalPoints: 500, Cadence: mukando.CadenceWeekly, TermMonths: 6,
	}

	tests := []struct {
		name   string
		mutate func(r *mukando.CreateGroupRequest)
	}{
		{"zero goal", func(r *mukando.CreateGroupRequest) { r.GoalPoints = 0 }},
		{"negative goal", func(r *mukando.CreateGroupRequest) { r.GoalPoints = -10 }},
		{"zero term", func(r *mukando.CreateGroupRequest) { r.TermMonths = 0 }},
		{"blank label", func(r *mukando.CreateGroupRequest) { r.GoalLabel = "   " }},
		{"unknown cadence", func(r *mukando.CreateGroupRequest) { r.Cadence = "daily" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := f.svc.CreateGroupRequest(context.Background(), alice, &req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestCreateGroupRequest_UnknownParties(t *testing.T) {
	f := newFixture(t)
	req := &mukando.CreateGroupRequest{
		BusinessID: 999, GoalLabel: "Bicycle", GoalPoints: 500, Cadence: mukando.CadenceWeekly, TermMonths: 6,
	}

	_, err := f.svc.CreateGroupRequest(context.Background(), alice, req)
	assert.ErrorIs(t, err, mukando.ErrBusinessNotFound)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	req.BusinessID = business
	_, err = f.svc.CreateGroupRequest(context.Background(), 999, req)
	assert.ErrorIs(t, err, mukando.ErrCustomerNotFound)
}

func TestApproveGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, mukando.CadenceMonthly)
	ctx := context.Background()

	_, err := f.svc.ApproveGroup(ctx, g.ID, otherBusiness, &mukando.ApproveGroupRequest{})
	assert.ErrorIs(t, err, apperror.ErrPermission)

	_, err = f.svc.ApproveGroup(ctx, g.ID, business, &mukando.ApproveGroupRequest{Capacity: intPtr(0)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	bad := 120.0
	_, err = f.svc.ApproveGroup(ctx, g.ID, business, &mukando.ApproveGroupRequest{DiscountRate: &bad})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.ApproveGroup(ctx, 999, business, &mukando.ApproveGroupRequest{})
	assert.ErrorIs(t, err, mukando.ErrGroupNotFound)

	discount := 15.0
	approved, err := f.svc.ApproveGroup(ctx, g.ID, business, &mukando.ApproveGroupRequest{
		Capacity: intPtr(3), DiscountRate: &discount,
	})
	require.NoError(t, err)
	assert.Equal(t, mukando.StatusApproved, approved.Status)
	require.NotNil(t, approved.Capacity)
	assert.Equal(t, 3, *approved.Capacity)
	require.NotNil(t, approved.DiscountRate)
	assert.Equal(t, 15.0, *approved.DiscountRate)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, f.clock.Now(), *approved.ApprovedAt)

	_, err = f.svc.ApproveGroup(ctx, g.ID, business, &mukando.ApproveGroupRequest{})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	assert.Equal(t, []string{"approved"}, f.notifier.events)
}

func TestDeclineGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGroup(t, mukando.CadenceWeekly)

	_, err := f.svc.DeclineGroup(ctx, g.ID, otherBusiness)
	assert.ErrorIs(t, err, apperror.ErrPermission)

	declined, err := f.svc.DeclineGroup(ctx, g.ID, business)
	require.NoError(t, err)
	assert.Equal(t, mukando.StatusCancelled, declined.Status)
	assert.NotNil(t, declined.CancelledAt)

	_, err = f.svc.ApproveGroup(ctx, g.ID, business, &mukando.ApproveGroupRequest{})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.svc.JoinGroup(ctx, g.ID, bob)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	approved := f.approvedGroup(t, nil)
	_, err = f.svc.DeclineGroup(ctx, approved.ID, business)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestJoinGroup_AssignsJoinOrder(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, nil)

	for i, c := range []int64{bob, alice, carol} {
		m, err := f.svc.JoinGroup(context.Background(), g.ID, c)
		require.NoError(t, err)
		assert.Equal(t, i, m.PayoutOrder)
		assert.Zero(t, m.ContributedPoints)
		assert.Zero(t, m.RewardsReceived)
	}

	_, members, err := f.svc.GetGroup(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, []int64{bob, alice, carol},
		[]int64{members[0].CustomerID, members[1].CustomerID, members[2].CustomerID})
}

func TestJoinGroup_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createGroup(t, mukando.CadenceWeekly)
	_, err := f.svc.JoinGroup(ctx, pending.ID, bob)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.svc.JoinGroup(ctx, 999, bob)
	assert.ErrorIs(t, err, mukando.ErrGroupNotFound)

	g := f.approvedGroup(t, nil)
	_, err = f.svc.JoinGroup(ctx, g.ID, 999)
	assert.ErrorIs(t, err, mukando.ErrCustomerNotFound)

	f.join(t, g.ID, bob)
	_, err = f.svc.JoinGroup(ctx, g.ID, bob)
	assert.ErrorIs(t, err, apperror.ErrDuplicateMembership)

	count, err := f.store.CountMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJoinGroup_Capacity(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, intPtr(2))
	f.join(t, g.ID, alice, bob)

	_, err := f.svc.JoinGroup(context.Background(), g.ID, carol)
	assert.ErrorIs(t, err, apperror.ErrCapacity)

	// A member re-joining a full group is told they are already in it.
	_, err = f.svc.JoinGroup(context.Background(), g.ID, alice)
	assert.ErrorIs(t, err, apperror.ErrDuplicateMembership)
	assert.NotErrorIs(t, err, apperror.ErrCapacity)

	// Contributions and payouts do not free a seat.
	_, err = f.svc.Contribute(context.Background(), g.ID, alice, 100)
	require.NoError(t, err)
	_, err = f.svc.Distribute(context.Background(), g.ID)
	require.NoError(t, err)

	_, err = f.svc.JoinGroup(context.Background(), g.ID, carol)
	assert.ErrorIs(t, err, apperror.ErrCapacity)
}

func TestContribute(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, bob)

	result, err := f.svc.Contribute(context.Background(), g.ID, bob, 99)
	require.NoError(t, err)

	assert.Equal(t, int64(99), result.PoolPoints)
	assert.Equal(t, int64(9), result.BonusPoints)
	assert.Equal(t, int64(401), result.RemainingBalance)
	assert.InDelta(t, 9.9, result.GoalPercentage, 0.0001)
	assert.Equal(t, 1, result.Contribution.Cycle)
	assert.Equal(t, int64(9), result.Contribution.BonusPoints)

	after := f.group(t, g.ID)
	assert.Equal(t, int64(99), after.PoolPoints)
	assert.Equal(t, int64(9), after.UnpaidBonusPoints)

	m, err := f.store.GetMember(context.Background(), g.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(99), m.ContributedPoints)

	entries, total, err := f.store.ListEntries(context.Background(), bob, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, points.EntryMukandoContribution, entries[0].Type)
	assert.Equal(t, int64(-99), entries[0].Amount)
	require.NotNil(t, entries[0].BusinessID)
	assert.Equal(t, business, *entries[0].BusinessID)
	require.NotNil(t, entries[0].GroupID)
	assert.Equal(t, g.ID, *entries[0].GroupID)
}

func TestBonusFor(t *testing.T) {
	assert.Equal(t, int64(9), mukando.BonusFor(99))
	assert.Equal(t, int64(10), mukando.BonusFor(100))
	assert.Equal(t, int64(0), mukando.BonusFor(9))
	assert.Equal(t, int64(1), mukando.BonusFor(10))
}

func TestContribute_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, bob)

	_, err := f.svc.Contribute(ctx, g.ID, bob, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Contribute(ctx, g.ID, bob, -5)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Contribute(ctx, g.ID, bob, 501)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	_, err = f.svc.Contribute(ctx, g.ID, 999, 10)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Contribute(ctx, 999, bob, 10)
	assert.ErrorIs(t, err, mukando.ErrGroupNotFound)

	_, err = f.svc.Contribute(ctx, g.ID, carol, 10)
	assert.ErrorIs(t, err, apperror.ErrNotMember)

	pending := f.createGroup(t, mukando.CadenceWeekly)
	_, err = f.svc.Contribute(ctx, pending.ID, bob, 10)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	// Nothing moved.
	assert.Equal(t, int64(500), f.balance(t, bob))
	assert.Equal(t, int64(500), f.balance(t, carol))
	assert.Zero(t, f.group(t, g.ID).PoolPoints)
}

func TestContribute_ExactBalance(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, bob)

	result, err := f.svc.Contribute(context.Background(), g.ID, bob, 500)
	require.NoError(t, err)
	assert.Zero(t, result.RemainingBalance)

	_, err = f.svc.Contribute(context.Background(), g.ID, bob, 1)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g := f.approvedGroup(t, intPtr(3))
	f.join(t, g.ID, alice, bob, carol)

	for _, c := range []int64{alice, bob, carol} {
		result, err := f.svc.Contribute(ctx, g.ID, c, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(10), result.BonusPoints)
		assert.Equal(t, int64(400), f.balance(t, c))
	}

	before := f.group(t, g.ID)
	assert.Equal(t, int64(300), before.PoolPoints)
	assert.Equal(t, int64(30), before.UnpaidBonusPoints)
	assert.InDelta(t, 30.0, before.GoalPercentage(), 0.0001)

	f.clock.AddDate(0, 1, 0)
	report, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	require.Len(t, report.Payouts, 1)
	assert.Empty(t, report.Failures)
	assert.NotEmpty(t, report.RunID)

	payout := report.Payouts[0]
	assert.Equal(t, g.ID, payout.GroupID)
	assert.Equal(t, alice, payout.RecipientID)
	assert.Equal(t, int64(30), payout.Amount)
	assert.Equal(t, 1, payout.NewRotationPointer)
	assert.False(t, payout.Completed)

	after := f.group(t, g.ID)
	assert.Equal(t, mukando.StatusApproved, after.Status)
	assert.Equal(t, 1, after.RotationPointer)
	assert.Zero(t, after.UnpaidBonusPoints)
	assert.Equal(t, int64(300), after.PoolPoints)
	assert.Equal(t, int64(430), f.balance(t, alice))
	assert.Equal(t, int64(400), f.balance(t, bob))

	payouts, err := f.svc.ListPayouts(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, 1, payouts[0].Cycle)

	m, err := f.store.GetMember(ctx, g.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), m.RewardsReceived)
}

func TestRotationCompletesAfterEveryMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice, bob, carol)

	var recipients []int64
	for round := 0; round < 3; round++ {
		_, err := f.svc.Contribute(ctx, g.ID, bob, 50)
		require.NoError(t, err)

		result, err := f.svc.Distribute(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), result.Amount)
		assert.Equal(t, round+1, result.NewRotationPointer)
		assert.Equal(t, round == 2, result.Completed)
		recipients = append(recipients, result.RecipientID)
	}

	assert.Equal(t, []int64{alice, bob, carol}, recipients)

	done := f.group(t, g.ID)
	assert.Equal(t, mukando.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	_, err := f.svc.Contribute(ctx, g.ID, bob, 10)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	_, err = f.svc.Distribute(ctx, g.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	_, err = f.svc.JoinGroup(ctx, g.ID, dave)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	contributions, err := f.svc.ListContributions(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, contributions, 3)
	assert.Equal(t, []int{1, 2, 3},
		[]int{contributions[0].Cycle, contributions[1].Cycle, contributions[2].Cycle})

	assert.Contains(t, f.notifier.events, "completed")
	completedCount := 0
	for _, e := range f.notifier.events {
		if e == "completed" {
			completedCount++
		}
	}
	assert.Equal(t, 3, completedCount)
}

func TestDistribute_NothingToPay(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice)

	_, err := f.svc.Distribute(context.Background(), g.ID)
	assert.ErrorIs(t, err, mukando.ErrNothingToDistribute)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.svc.Distribute(context.Background(), 999)
	assert.ErrorIs(t, err, mukando.ErrGroupNotFound)
}

func TestRunPayoutSweep_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice, bob)
	_, err := f.svc.Contribute(ctx, g.ID, bob, 100)
	require.NoError(t, err)

	f.clock.AddDate(0, 1, 0)
	first, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	require.Len(t, first.Payouts, 1)

	second, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Payouts)
	assert.Empty(t, second.Failures)

	assert.Equal(t, int64(510), f.balance(t, alice))
	assert.Equal(t, 1, f.group(t, g.ID).RotationPointer)
}

func TestRunPayoutSweep_WaitsForCadence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	weekly := f.createGroup(t, mukando.CadenceWeekly)
	_, err := f.svc.ApproveGroup(ctx, weekly.ID, business, &mukando.ApproveGroupRequest{})
	require.NoError(t, err)
	monthly := f.approvedGroup(t, nil)

	for _, id := range []int64{weekly.ID, monthly.ID} {
		f.join(t, id, alice)
		_, err := f.svc.Contribute(ctx, id, alice, 100)
		require.NoError(t, err)
	}

	report, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Payouts)
	assert.Equal(t, 2, report.Skipped)

	f.clock.AddDate(0, 0, 7)
	report, err = f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	require.Len(t, report.Payouts, 1)
	assert.Equal(t, weekly.ID, report.Payouts[0].GroupID)

	f.clock.AddDate(0, 0, 24)
	report, err = f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	require.Len(t, report.Payouts, 1)
	assert.Equal(t, monthly.ID, report.Payouts[0].GroupID)
}

func TestRunPayoutSweep_MinIntervalOverride(t *testing.T) {
	f := newFixture(t, mukando.WithMinPayoutInterval(time.Hour))
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice)
	_, err := f.svc.Contribute(ctx, g.ID, alice, 100)
	require.NoError(t, err)

	next, ok := f.svc.NextPayoutAt(f.group(t, g.ID))
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(time.Hour), next)

	f.clock.AddDate(0, 0, 1)
	report, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Payouts, 1)
}

// failingStore injects failures into units run by the memory store.
type failingStore struct {
	*memory.Store
	failAppend    bool
	failLockGroup int64
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx mukando.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx mukando.Tx) error {
		return fn(&failingTx{Tx: tx, store: s})
	})
}

type failingTx struct {
	mukando.Tx
	store *failingStore
}

var errInjected = errors.New("injected failure")

func (t *failingTx) LockGroup(ctx context.Context, groupID int64) (*mukando.Group, error) {
	if groupID == t.store.failLockGroup {
		return nil, errInjected
	}
	return t.Tx.LockGroup(ctx, groupID)
}

func (t *failingTx) Ledger() points.Ledger {
	return &failingLedger{Ledger: t.Tx.Ledger(), store: t.store}
}

type failingLedger struct {
	points.Ledger
	store *failingStore
}

func (l *failingLedger) AppendEntry(ctx context.Context, e *points.Entry) error {
	if l.store.failAppend {
		return errInjected
	}
	return l.Ledger.AppendEntry(ctx, e)
}

func newFailingFixture(t *testing.T) (*fixture, *failingStore) {
	t.Helper()
	mem := memory.New()
	mem.AddBusiness(business)
	for _, id := range []int64{alice, bob, carol} {
		mem.AddCustomer(id, 500)
	}
	fs := &failingStore{Store: mem}
	return newFixtureWithStore(t, mem, fs), fs
}

func TestContribute_RollsBackWhenLedgerWriteFails(t *testing.T) {
	f, fs := newFailingFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, bob)

	fs.failAppend = true
	_, err := f.svc.Contribute(ctx, g.ID, bob, 100)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(500), f.balance(t, bob))
	after := f.group(t, g.ID)
	assert.Zero(t, after.PoolPoints)
	assert.Zero(t, after.UnpaidBonusPoints)

	contributions, err := f.svc.ListContributions(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, contributions)

	m, err := f.store.GetMember(ctx, g.ID, bob)
	require.NoError(t, err)
	assert.Zero(t, m.ContributedPoints)
}

func TestDistribute_RollsBackWhenLedgerWriteFails(t *testing.T) {
	f, fs := newFailingFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice, bob)
	_, err := f.svc.Contribute(ctx, g.ID, bob, 100)
	require.NoError(t, err)

	fs.failAppend = true
	_, err = f.svc.Distribute(ctx, g.ID)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(500), f.balance(t, alice))
	after := f.group(t, g.ID)
	assert.Equal(t, int64(10), after.UnpaidBonusPoints)
	assert.Zero(t, after.RotationPointer)

	fs.failAppend = false
	result, err := f.svc.Distribute(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, result.RecipientID)
	assert.Equal(t, int64(510), f.balance(t, alice))
}

func TestRunPayoutSweep_IsolatesFailures(t *testing.T) {
	f, fs := newFailingFixture(t)
	ctx := context.Background()

	broken := f.approvedGroup(t, nil)
	healthy := f.approvedGroup(t, nil)
	for _, id := range []int64{broken.ID, healthy.ID} {
		f.join(t, id, alice)
		_, err := f.svc.Contribute(ctx, id, alice, 100)
		require.NoError(t, err)
	}

	fs.failLockGroup = broken.ID
	f.clock.AddDate(0, 1, 0)

	report, err := f.svc.RunPayoutSweep(ctx)
	require.NoError(t, err)
	require.Len(t, report.Payouts, 1)
	assert.Equal(t, healthy.ID, report.Payouts[0].GroupID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, broken.ID, report.Failures[0].GroupID)
	assert.Contains(t, report.Failures[0].Error, "injected failure")

	assert.Equal(t, int64(10), f.group(t, broken.ID).UnpaidBonusPoints)
}

func TestConcurrentContributionsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, bob)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Contribute(ctx, g.ID, bob, 50)
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Zero(t, f.balance(t, bob))

	after := f.group(t, g.ID)
	assert.Equal(t, int64(500), after.PoolPoints)
	assert.Equal(t, int64(50), after.UnpaidBonusPoints)

	_, total, err := f.store.ListEntries(ctx, bob, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestConcurrentJoinsAssignUniqueOrders(t *testing.T) {
	f := newFixture(t)
	g := f.approvedGroup(t, intPtr(3))

	var wg sync.WaitGroup
	for _, c := range []int64{alice, bob, carol, dave} {
		wg.Add(1)
		go func(customerID int64) {
			defer wg.Done()
			_, _ = f.svc.JoinGroup(context.Background(), g.ID, customerID)
		}(c)
	}
	wg.Wait()

	_, members, err := f.svc.GetGroup(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, i, m.PayoutOrder)
	}
}

func TestBalanceConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.approvedGroup(t, nil)
	f.join(t, g.ID, alice, bob)

	_, err := f.svc.Contribute(ctx, g.ID, alice, 120)
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, g.ID, bob, 80)
	require.NoError(t, err)
	_, err = f.svc.Distribute(ctx, g.ID)
	require.NoError(t, err)

	for _, c := range []int64{alice, bob} {
		entries, _, err := f.store.ListEntries(ctx, c, 100, 0)
		require.NoError(t, err)
		var sum int64
		for _, e := range entries {
			sum += e.Amount
		}
		assert.Equal(t, f.balance(t, c)-500, sum, "ledger for customer %d", c)
	}

	// 12 + 8 bonus went to alice at order 0.
	assert.Equal(t, int64(500-120+20), f.balance(t, alice))
	assert.Equal(t, int64(500-80), f.balance(t, bob))
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createGroup(t, mukando.CadenceWeekly)
	f.clock.AddDate(0, 0, 1)
	open := f.approvedGroup(t, nil)
	f.clock.AddDate(0, 0, 1)
	full := f.approvedGroup(t, intPtr(1))
	f.join(t, full.ID, bob)
	f.join(t, open.ID, carol)

	mine, err := f.svc.ListMyGroups(ctx, carol)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, open.ID, mine[0].Group.ID)
	require.NotNil(t, mine[0].Membership)
	assert.Equal(t, 0, mine[0].Membership.PayoutOrder)

	created, err := f.svc.ListMyGroups(ctx, alice)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, full.ID, created[0].Group.ID)
	assert.Nil(t, created[0].Membership)

	available, err := f.svc.ListAvailableGroups(ctx, dave)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, open.ID, available[0].Group.ID)
	assert.Equal(t, 1, available[0].MemberCount)

	available, err = f.svc.ListAvailableGroups(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, available)

	hosted, err := f.svc.ListBusinessGroups(ctx, business, mukando.StatusPendingApproval)
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	assert.Equal(t, pending.ID, hosted[0].Group.ID)

	all, err := f.svc.ListBusinessGroups(ctx, business, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.ListBusinessGroups(ctx, business, "archived")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
