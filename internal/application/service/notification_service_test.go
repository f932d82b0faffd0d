package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_ReadFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 1000)
	f.createPR(t, "10")
	f.createPR(t, "20")

	inbox, err := f.notifications.List(ctx, f.requester, 0)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 2)
	assert.Equal(t, 2, inbox.Unread)

	first := inbox.Notifications[0]
	err = f.notifications.MarkRead(ctx, f.colleague, first.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	require.NoError(t, f.notifications.MarkRead(ctx, f.requester, first.ID))
	inbox, err = f.notifications.List(ctx, f.requester, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.Unread)

	n, err := f.notifications.MarkAllRead(ctx, f.requester)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	inbox, err = f.notifications.List(ctx, f.requester, 10)
	require.NoError(t, err)
	assert.Zero(t, inbox.Unread)

	empty, err := f.notifications.List(ctx, f.colleague, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty.Notifications)
	assert.Empty(t, empty.Notifications)
}
