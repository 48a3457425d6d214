package notification

import (
	"context"
	"fmt"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

// Common errors
var (
	ErrNotificationNotFound = fmt.Errorf("notification %w", apperror.ErrNotFound)
	ErrNotRecipient         = fmt.Errorf("%w: not the recipient of this notification", apperror.ErrPermission)
)

// Store persists notifications
type Store interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Service handles notification business logic
type Service struct {
	store Store
}

// NewService creates a new notification service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListByRecipientID retrieves notifications for a recipient
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.store.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, recipientID int64) error {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.RecipientID != recipientID {
		return ErrNotRecipient
	}

	return s.store.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a recipient
func (s *Service) MarkAllAsRead(ctx context.Context, recipientID int64) error {
	return s.store.MarkAllAsRead(ctx, recipientID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return s.store.GetUnreadCount(ctx, recipientID)
}

// Helper methods for savings group events

// NotifyGroupApproved tells the creator their group is open for members
func (s *Service) NotifyGroupApproved(ctx context.Context, recipientID, groupID int64, goalLabel string) error {
	message := fmt.Sprintf("Your savings group %q was approved and is open for members", goalLabel)
	return s.create(ctx, recipientID, TypeGroupApproved, message, groupID)
}

// NotifyGroupDeclined tells the creator the business declined their group
func (s *Service) NotifyGroupDeclined(ctx context.Context, recipientID, groupID int64, goalLabel string) error {
	message := fmt.Sprintf("Your savings group %q was declined by the business", goalLabel)
	return s.create(ctx, recipientID, TypeGroupDeclined, message, groupID)
}

// NotifyPayoutReceived tells a member it was their turn in the rotation
func (s *Service) NotifyPayoutReceived(ctx context.Context, recipientID, groupID int64, goalLabel string, amount int64) error {
	message := fmt.Sprintf("You received %d bonus points from savings group %q", amount, goalLabel)
	return s.create(ctx, recipientID, TypePayoutReceived, message, groupID)
}

// NotifyGroupCompleted tells a member every rotation slot has been paid
func (s *Service) NotifyGroupCompleted(ctx context.Context, recipientID, groupID int64, goalLabel string) error {
	message := fmt.Sprintf("Savings group %q has completed its rotation", goalLabel)
	return s.create(ctx, recipientID, TypeGroupCompleted, message, groupID)
}

func (s *Service) create(ctx context.Context, recipientID int64, typ Type, message string, groupID int64) error {
	entityType := entitySavingsGroup
	return s.store.Create(ctx, &Notification{
		RecipientID:       recipientID,
		Type:              typ,
		Message:           message,
		RelatedEntityType: &entityType,
		RelatedEntityID:   &groupID,
	})
}
