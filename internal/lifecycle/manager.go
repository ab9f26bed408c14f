// Package lifecycle runs requests from submission through review: it stores
// them, applies status transitions and emits notifications once the
// database work has committed.
package lifecycle

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/notify"
	"github.com/gudangmitra/gudang/internal/store"
)

// notifyTimeout bounds a single post-commit notification.
const notifyTimeout = 10 * time.Second

// Manager is the request lifecycle service.
type Manager struct {
	DB       *sql.DB
	Notifier notify.Notifier
	Options  store.TransitionOptions

	// Async sends notifications from a goroutine. Call Wait before closing
	// the database.
	Async bool

	wg sync.WaitGroup
}

// New returns a Manager that records notifications in db.
func New(db *sql.DB, opts store.TransitionOptions) *Manager {
	return &Manager{DB: db, Notifier: notify.NewStoreNotifier(db), Options: opts}
}

// CreateRequest validates and stores a request, then notifies reviewers and
// the requester.
func (m *Manager) CreateRequest(ctx context.Context, draft model.RequestDraft) (*model.Request, error) {
	req, err := store.CreateRequest(ctx, m.DB, draft)
	if err != nil {
		return nil, err
	}

	slog.Info("request submitted", "request", req.ID, "requester", req.RequesterID, "items", len(req.Items))

	e := notify.RequestSubmittedEvent{RequestID: req.ID, ProjectName: req.ProjectName, RequesterID: req.RequesterID}
	m.emit(ctx, "request_submitted", req.ID, func(ctx context.Context) error {
		return m.notifier().NotifyRequestSubmitted(ctx, e)
	})
	return req, nil
}

// GetRequest returns a request with its items.
func (m *Manager) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	return store.GetRequest(ctx, m.DB, id)
}

// ListRequests returns requests matching filter.
func (m *Manager) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.Request, error) {
	return store.ListRequests(ctx, m.DB, filter)
}

// SetRequestStatus applies a transition and notifies the requester.
func (m *Manager) SetRequestStatus(ctx context.Context, id, status string) (*model.StatusChange, error) {
	change, err := store.SetRequestStatus(ctx, m.DB, id, status, m.Options)
	if err != nil {
		return nil, err
	}

	for _, s := range change.Shortfalls() {
		slog.Warn("approved beyond stock on hand", "request", id, "item", s.ItemID, "name", s.Name,
			"requested", s.Requested, "on_hand", s.Before, "shortfall", s.Shortfall)
	}
	slog.Info("request status changed", "request", id, "from", change.From, "to", change.To)

	e := notify.RequestStatusChangedEvent{
		RequestID:   id,
		ProjectName: change.Request.ProjectName,
		RequesterID: change.Request.RequesterID,
		From:        change.From,
		To:          change.To,
	}
	m.emit(ctx, "request_status_changed", id, func(ctx context.Context) error {
		return m.notifier().NotifyRequestStatusChanged(ctx, e)
	})
	return change, nil
}

// DeleteRequest removes a request and its line items.
func (m *Manager) DeleteRequest(ctx context.Context, id string) error {
	if err := store.DeleteRequest(ctx, m.DB, id); err != nil {
		return err
	}
	slog.Info("request deleted", "request", id)
	return nil
}

// Wait blocks until in-flight async notifications are done.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) notifier() notify.Notifier {
	if m.Notifier == nil {
		return notify.NoopNotifier{}
	}
	return m.Notifier
}

// emit runs send detached from the caller's cancellation. Errors are logged
// and dropped: the triggering operation has already committed.
func (m *Manager) emit(ctx context.Context, event, requestID string, send func(context.Context) error) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			slog.Error("notification failed", "event", event, "request", requestID, "error", err)
		}
	}

	if !m.Async {
		run()
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		run()
	}()
}
