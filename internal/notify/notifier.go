// Package notify records user-facing notifications about requests.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	NotifyRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error
	NotifyRequestStatusChanged(ctx context.Context, e RequestStatusChangedEvent) error
}

// NoopNotifier discards every event.
type NoopNotifier struct{}

func (NoopNotifier) NotifyRequestSubmitted(context.Context, RequestSubmittedEvent) error { return nil }
func (NoopNotifier) NotifyRequestStatusChanged(context.Context, RequestStatusChangedEvent) error {
	return nil
}

// StoreNotifier writes notifications to the notifications table.
type StoreNotifier struct {
	DB *sql.DB
}

// NewStoreNotifier returns a notifier backed by db.
func NewStoreNotifier(db *sql.DB) *StoreNotifier {
	return &StoreNotifier{DB: db}
}

// NotifyRequestSubmitted tells every admin and manager there is a request to
// review and confirms receipt to the requester. It keeps going after a
// failed insert and returns all failures joined.
func (n *StoreNotifier) NotifyRequestSubmitted(ctx context.Context, e RequestSubmittedEvent) error {
	reviewers, err := store.ListUserIDsByRole(ctx, n.DB, model.RoleAdmin, model.RoleManager)
	if err != nil {
		return fmt.Errorf("finding reviewers: %w", err)
	}

	var errs []error
	for _, id := range reviewers {
		errs = append(errs, n.send(ctx, id, model.NotifyRequestSubmitted,
			fmt.Sprintf("New request %q requires your review", e.ProjectName), e.RequestID))
	}
	errs = append(errs, n.send(ctx, e.RequesterID, model.NotifyRequestSubmitted,
		fmt.Sprintf("Your request %q has been submitted and is pending review", e.ProjectName), e.RequestID))
	return errors.Join(errs...)
}

// NotifyRequestStatusChanged tells the requester what happened. Moving back
// to pending produces nothing.
func (n *StoreNotifier) NotifyRequestStatusChanged(ctx context.Context, e RequestStatusChangedEvent) error {
	kind, message, ok := StatusMessage(e.To, e.ProjectName)
	if !ok {
		return nil
	}
	return n.send(ctx, e.RequesterID, kind, message, e.RequestID)
}

func (n *StoreNotifier) send(ctx context.Context, userID int64, kind, message, requestID string) error {
	_, err := store.CreateNotification(ctx, n.DB, model.Notification{
		UserID:           userID,
		Type:             kind,
		Message:          message,
		RelatedRequestID: requestID,
	})
	if err != nil {
		return fmt.Errorf("notifying user %d: %w", userID, err)
	}
	return nil
}

// StatusMessage returns the notification type and text for a request that
// moved to status. ok is false when no notification is due.
func StatusMessage(status, project string) (kind, message string, ok bool) {
	switch status {
	case model.RequestApproved:
		return model.NotifyRequestApproved, fmt.Sprintf("Your request %q has been approved", project), true
	case model.RequestDenied:
		return model.NotifyRequestRejected, fmt.Sprintf("Your request %q has been rejected", project), true
	case model.RequestOutOfStock:
		return model.NotifyRequestRejected, fmt.Sprintf("Your request %q cannot be fulfilled due to insufficient stock", project), true
	case model.RequestFulfilled:
		return model.NotifyRequestFulfilled, fmt.Sprintf("Your request %q has been fulfilled", project), true
	}
	return "", "", false
}
