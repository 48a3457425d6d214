package memory

import (
	"context"
	"sort"

	"github.com/fkhayef/smartrewards/internal/points"
)

// ledger implements points.Ledger over one state value.
type ledger struct {
	st *state
}

func (l *ledger) GetBalance(_ context.Context, customerID int64) (int64, error) {
	balance, ok := l.st.balances[customerID]
	if !ok {
		return 0, points.ErrCustomerNotFound
	}
	return balance, nil
}

func (l *ledger) AdjustBalance(_ context.Context, customerID, delta int64) (int64, error) {
	balance, ok := l.st.balances[customerID]
	if !ok {
		return 0, points.ErrCustomerNotFound
	}
	if balance+delta < 0 {
		return 0, points.ErrInsufficientBalance
	}
	l.st.balances[customerID] = balance + delta
	return balance + delta, nil
}

func (l *ledger) AppendEntry(_ context.Context, entry *points.Entry) error {
	if _, ok := l.st.balances[entry.CustomerID]; !ok {
		return points.ErrCustomerNotFound
	}
	l.st.nextEntryID++
	entry.ID = l.st.nextEntryID
	cp := *entry
	l.st.entries = append(l.st.entries, &cp)
	return nil
}

func (l *ledger) ListEntries(_ context.Context, customerID int64, limit, offset int) ([]*points.Entry, int, error) {
	var all []*points.Entry
	for _, e := range l.st.entries {
		if e.CustomerID == customerID {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// storeLedger commits each call on its own.
type storeLedger struct {
	s *Store
}

func (l *storeLedger) GetBalance(ctx context.Context, customerID int64) (int64, error) {
	return l.s.GetBalance(ctx, customerID)
}

func (l *storeLedger) AdjustBalance(ctx context.Context, customerID, delta int64) (balance int64, err error) {
	err = l.s.read(func(v *view) error {
		balance, err = (&ledger{st: v.st}).AdjustBalance(ctx, customerID, delta)
		return err
	})
	return balance, err
}

func (l *storeLedger) AppendEntry(ctx context.Context, entry *points.Entry) error {
	return l.s.read(func(v *view) error {
		return (&ledger{st: v.st}).AppendEntry(ctx, entry)
	})
}

// GetBalance returns a customer's current balance.
func (s *Store) GetBalance(ctx context.Context, customerID int64) (balance int64, err error) {
	err = s.read(func(v *view) error {
		balance, err = (&ledger{st: v.st}).GetBalance(ctx, customerID)
		return err
	})
	return balance, err
}

// ListEntries returns a customer's ledger, newest first.
func (s *Store) ListEntries(ctx context.Context, customerID int64, limit, offset int) (entries []*points.Entry, total int, err error) {
	err = s.read(func(v *view) error {
		entries, total, err = (&ledger{st: v.st}).ListEntries(ctx, customerID, limit, offset)
		return err
	})
	return entries, total, err
}
