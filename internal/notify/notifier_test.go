package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		status  string
		kind    string
		message string
		ok      bool
	}{
		{model.RequestApproved, model.NotifyRequestApproved, `Your request "Roof" has been approved`, true},
		{model.RequestDenied, model.NotifyRequestRejected, `Your request "Roof" has been rejected`, true},
		{model.RequestOutOfStock, model.NotifyRequestRejected, `Your request "Roof" cannot be fulfilled due to insufficient stock`, true},
		{model.RequestFulfilled, model.NotifyRequestFulfilled, `Your request "Roof" has been fulfilled`, true},
		{model.RequestPending, "", "", false},
	}

	for _, tt := range tests {
		kind, message, ok := StatusMessage(tt.status, "Roof")
		assert.Equal(t, tt.ok, ok, tt.status)
		assert.Equal(t, tt.kind, kind, tt.status)
		assert.Equal(t, tt.message, message, tt.status)
	}
}

func TestStoreNotifierSubmitted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin, _ := store.CreateUser(ctx, database, "Admin", "admin@example.com", "h", model.RoleAdmin)
	manager, _ := store.CreateUser(ctx, database, "Manager", "manager@example.com", "h", model.RoleManager)
	user, _ := store.CreateUser(ctx, database, "User", "user@example.com", "h", model.RoleUser)

	n := NewStoreNotifier(database)
	err := n.NotifyRequestSubmitted(ctx, RequestSubmittedEvent{RequestID: "req-1", ProjectName: "Roof", RequesterID: user.ID})
	require.NoError(t, err)

	for _, id := range []int64{admin.ID, manager.ID} {
		list, err := store.ListNotifications(ctx, database, id, false, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, `New request "Roof" requires your review`, list[0].Message)
		assert.Equal(t, "req-1", list[0].RelatedRequestID)
	}

	mine, _ := store.ListNotifications(ctx, database, user.ID, false, 0)
	require.Len(t, mine, 1)
	assert.Equal(t, `Your request "Roof" has been submitted and is pending review`, mine[0].Message)
}

func TestStoreNotifierStatusChanged(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := store.CreateUser(ctx, database, "User", "user@example.com", "h", model.RoleUser)
	n := NewStoreNotifier(database)

	require.NoError(t, n.NotifyRequestStatusChanged(ctx, RequestStatusChangedEvent{
		RequestID: "req-1", ProjectName: "Roof", RequesterID: user.ID, From: model.RequestPending, To: model.RequestDenied,
	}))
	require.NoError(t, n.NotifyRequestStatusChanged(ctx, RequestStatusChangedEvent{
		RequestID: "req-1", ProjectName: "Roof", RequesterID: user.ID, To: model.RequestPending,
	}))

	list, _ := store.ListNotifications(ctx, database, user.ID, false, 0)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotifyRequestRejected, list[0].Type)
}

func TestStoreNotifierReportsFailure(t *testing.T) {
	database := db.NewTestDB(t)

	n := NewStoreNotifier(database)
	err := n.NotifyRequestStatusChanged(context.Background(), RequestStatusChangedEvent{
		RequestID: "req-1", ProjectName: "Roof", RequesterID: 4242, To: model.RequestApproved,
	})
	assert.Error(t, err, "unknown recipient violates the foreign key")
}
