package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/smartrewards/internal/notification"
	"github.com/fkhayef/smartrewards/internal/storage/memory"
	"github.com/fkhayef/smartrewards/pkg/apperror"
)

func newService() *notification.Service {
	return notification.NewService(memory.New().Notifications())
}

func TestGroupEvents(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	require.NoError(t, svc.NotifyGroupApproved(ctx, 1, 10, "Fridge"))
	require.NoError(t, svc.NotifyPayoutReceived(ctx, 1, 10, "Fridge", 30))
	require.NoError(t, svc.NotifyGroupCompleted(ctx, 2, 10, "Fridge"))

	notes, total, err := svc.ListByRecipientID(ctx, 1, 1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, notes, 2)

	assert.Equal(t, notification.TypePayoutReceived, notes[0].Type)
	assert.Contains(t, notes[0].Message, "30 bonus points")
	assert.Contains(t, notes[0].Message, `"Fridge"`)
	require.NotNil(t, notes[0].RelatedEntityID)
	assert.Equal(t, int64(10), *notes[0].RelatedEntityID)
	require.NotNil(t, notes[0].RelatedEntityType)
	assert.Equal(t, "SAVINGS_GROUP", *notes[0].RelatedEntityType)

	assert.Equal(t, notification.TypeGroupApproved, notes[1].Type)
}

func TestMarkAsRead(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	require.NoError(t, svc.NotifyGroupDeclined(ctx, 1, 10, "Fridge"))
	require.NoError(t, svc.NotifyGroupApproved(ctx, 1, 11, "Bicycle"))

	count, err := svc.GetUnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	notes, _, err := svc.ListByRecipientID(ctx, 1, 1, 20, true)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	err = svc.MarkAsRead(ctx, notes[0].ID, 2)
	assert.ErrorIs(t, err, apperror.ErrPermission)

	err = svc.MarkAsRead(ctx, 999, 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, svc.MarkAsRead(ctx, notes[0].ID, 1))
	count, err = svc.GetUnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkAllAsRead(ctx, 1))
	unread, total, err := svc.ListByRecipientID(ctx, 1, 1, 20, true)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, unread)
}

func TestListPagination(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, svc.NotifyPayoutReceived(ctx, 1, 10, "Fridge", i))
	}

	page, total, err := svc.ListByRecipientID(ctx, 1, 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Contains(t, page[0].Message, "received 3 bonus")

	// Out-of-range page sizes fall back to 20.
	page, _, err = svc.ListByRecipientID(ctx, 1, 0, 500, false)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
