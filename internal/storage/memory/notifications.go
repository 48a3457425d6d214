package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fkhayef/smartrewards/internal/notification"
)

// Notifications is the notification store view of a Store.
type Notifications struct {
	s   *Store
	now func() time.Time
}

// Notifications returns the notification store sharing this store's state.
func (s *Store) Notifications() *Notifications {
	return &Notifications{s: s, now: time.Now}
}

func (n *Notifications) Create(_ context.Context, note *notification.Notification) error {
	return n.s.read(func(v *view) error {
		v.st.nextNotificationID++
		note.ID = v.st.nextNotificationID
		note.IsRead = false
		note.CreatedAt = n.now().UTC()
		cp := *note
		v.st.notifications = append(v.st.notifications, &cp)
		return nil
	})
}

func (n *Notifications) GetByID(_ context.Context, id int64) (found *notification.Notification, err error) {
	err = n.s.read(func(v *view) error {
		for _, note := range v.st.notifications {
			if note.ID == id {
				cp := *note
				found = &cp
				break
			}
		}
		return nil
	})
	return found, err
}

func (n *Notifications) ListByRecipientID(_ context.Context, recipientID int64, limit, offset int, unreadOnly bool) (out []*notification.Notification, total int, err error) {
	err = n.s.read(func(v *view) error {
		var all []*notification.Notification
		for _, note := range v.st.notifications {
			if note.RecipientID != recipientID || (unreadOnly && note.IsRead) {
				continue
			}
			cp := *note
			all = append(all, &cp)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].ID > all[j].ID })

		total = len(all)
		if offset < total {
			end := offset + limit
			if end > total {
				end = total
			}
			out = all[offset:end]
		}
		return nil
	})
	return out, total, err
}

func (n *Notifications) MarkAsRead(_ context.Context, id int64) error {
	return n.s.read(func(v *view) error {
		for i, note := range v.st.notifications {
			if note.ID == id {
				cp := *note
				cp.IsRead = true
				v.st.notifications[i] = &cp
			}
		}
		return nil
	})
}

func (n *Notifications) MarkAllAsRead(_ context.Context, recipientID int64) error {
	return n.s.read(func(v *view) error {
		for i, note := range v.st.notifications {
			if note.RecipientID == recipientID && !note.IsRead {
				cp := *note
				cp.IsRead = true
				v.st.notifications[i] = &cp
			}
		}
		return nil
	})
}

func (n *Notifications) GetUnreadCount(_ context.Context, recipientID int64) (count int, err error) {
	err = n.s.read(func(v *view) error {
		for _, note := range v.st.notifications {
			if note.RecipientID == recipientID && !note.IsRead {
				count++
			}
		}
		return nil
	})
	return count, err
}
