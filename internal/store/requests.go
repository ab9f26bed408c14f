package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/gudangmitra/gudang/internal/model"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type line struct {
	itemID   int64
	quantity int
}

// validateDraft checks everything that can be checked without the database
// and returns the lines with duplicate items merged, in first-seen order.
func validateDraft(draft *model.RequestDraft) ([]line, error) {
	draft.ProjectName = strings.TrimSpace(draft.ProjectName)
	if draft.ProjectName == "" {
		return nil, validationf("project_name required")
	}
	if draft.Priority == "" {
		draft.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(draft.Priority) {
		return nil, validationf("invalid priority %q", draft.Priority)
	}
	if len(draft.Items) == 0 {
		return nil, validationf("items required")
	}

	var lines []line
	index := make(map[int64]int)
	for i, d := range draft.Items {
		id, err := d.ItemID.Int64()
		if err != nil {
			return nil, validationf("items[%d]: %v", i, err)
		}
		if d.Quantity < 1 {
			return nil, validationf("items[%d]: quantity for item_id %d must be at least 1", i, id)
		}
		if j, ok := index[id]; ok {
			if lines[j].quantity > math.MaxInt-d.Quantity {
				return nil, validationf("items[%d]: total quantity for item_id %d is too large", i, id)
			}
			lines[j].quantity += d.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, line{itemID: id, quantity: d.Quantity})
	}
	return lines, nil
}

// CreateRequest stores a pending request and its line items in one
// transaction. Every line must reference an existing, active item; if any
// does not, nothing is written.
func CreateRequest(ctx context.Context, db *sql.DB, draft model.RequestDraft) (*model.Request, error) {
	lines, err := validateDraft(&draft)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	requesterID, err := resolveRequester(ctx, tx, draft.RequesterID)
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT is_active FROM items WHERE id = ?`, l.itemID).Scan(&active)
		if err == sql.ErrNoRows {
			return nil, validationf("item_id %d does not exist", l.itemID)
		}
		if err != nil {
			return nil, internalErr("checking item", err)
		}
		if !active {
			return nil, validationf("item_id %d is no longer available", l.itemID)
		}
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO requests (id, project_name, requester_id, reason, priority, due_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, draft.ProjectName, requesterID, nullString(draft.Reason), draft.Priority, draft.DueDate, model.RequestPending,
	)
	if err != nil {
		return nil, internalErr("inserting request", err)
	}

	for _, l := range lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO request_items (request_id, item_id, quantity) VALUES (?, ?, ?)`,
			id, l.itemID, l.quantity,
		)
		if err != nil {
			return nil, internalErr(fmt.Sprintf("inserting line for item %d", l.itemID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internalErr("committing request", err)
	}

	return GetRequest(ctx, db, id)
}

// resolveRequester returns id when it names an active user.
//
// Deprecated fallback: otherwise the first admin, else the first user, is
// used. Callers should always pass a real requester.
func resolveRequester(ctx context.Context, tx *sql.Tx, id int64) (int64, error) {
	if id > 0 {
		var ok bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = ? AND deleted_at IS NULL)`, id,
		).Scan(&ok)
		if err != nil {
			return 0, internalErr("checking requester", err)
		}
		if ok {
			return id, nil
		}
	}

	var fallback int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE deleted_at IS NULL
		 ORDER BY CASE role WHEN 'admin' THEN 0 ELSE 1 END, id LIMIT 1`,
	).Scan(&fallback)
	if err == sql.ErrNoRows {
		return 0, validationf("requester_id %d does not resolve to a user", id)
	}
	if err != nil {
		return 0, internalErr("selecting fallback requester", err)
	}

	slog.Warn("request submitted without a valid requester, using fallback user", "requester_id", id, "fallback", fallback)
	return fallback, nil
}

const requestQuery = `SELECT r.id, r.project_name, r.requester_id, COALESCE(u.name, ''), COALESCE(u.email, ''),
	r.reason, r.priority, r.due_date, r.status, r.created_at, r.updated_at
	FROM requests r
	LEFT JOIN users u ON u.id = r.requester_id`

// GetRequest returns a request with its line items.
func GetRequest(ctx context.Context, db *sql.DB, id string) (*model.Request, error) {
	req, err := scanRequest(db.QueryRowContext(ctx, requestQuery+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("request %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}

	lines, err := loadLines(ctx, db, `ri.request_id = ?`, id)
	if err != nil {
		return nil, err
	}
	req.Items = lines[id]
	if req.Items == nil {
		req.Items = []model.RequestItem{}
	}
	return req, nil
}

// ListRequests returns requests matching filter, newest first, each with its
// line items.
func ListRequests(ctx context.Context, db *sql.DB, filter model.RequestFilter) ([]model.Request, error) {
	where := `1=1`
	var args []any
	if filter.RequesterID > 0 {
		where += ` AND r.requester_id = ?`
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		where += ` AND r.status = ?`
		args = append(args, filter.Status)
	}

	rows, err := db.QueryContext(ctx, requestQuery+` WHERE `+where+` ORDER BY r.created_at DESC, r.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	if len(requests) == 0 {
		return requests, nil
	}

	lines, err := loadLines(ctx, db, `ri.request_id IN (SELECT r.id FROM requests r WHERE `+where+`)`, args...)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		requests[i].Items = lines[requests[i].ID]
		if requests[i].Items == nil {
			requests[i].Items = []model.RequestItem{}
		}
	}
	return requests, nil
}

// DeleteRequest removes a request and its line items. Line items go first
// because they reference the request row.
func DeleteRequest(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_items WHERE request_id = ?`, id); err != nil {
		return internalErr("deleting request items", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return internalErr("deleting request", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return internalErr("checking deleted request", err)
	}
	if n == 0 {
		return notFoundf("request %s", id)
	}

	if err := tx.Commit(); err != nil {
		return internalErr("committing request delete", err)
	}
	return nil
}

// loadLines returns line items joined with their items, keyed by request id.
func loadLines(ctx context.Context, q queryer, where string, args ...any) (map[string][]model.RequestItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ri.request_id, ri.item_id, ri.quantity, i.name, i.description, i.category
		 FROM request_items ri
		 JOIN items i ON i.id = ri.item_id
		 WHERE `+where+`
		 ORDER BY ri.rowid`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading request items: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]model.RequestItem)
	for rows.Next() {
		var ri model.RequestItem
		var description, category sql.NullString
		if err := rows.Scan(&ri.RequestID, &ri.ItemID, &ri.Quantity, &ri.Name, &description, &category); err != nil {
			return nil, fmt.Errorf("scanning request item: %w", err)
		}
		ri.Description = description.String
		ri.Category = category.String
		lines[ri.RequestID] = append(lines[ri.RequestID], ri)
	}
	return lines, rows.Err()
}

func scanRequest(row rowScanner) (*model.Request, error) {
	req := &model.Request{}
	var reason sql.NullString
	err := row.Scan(&req.ID, &req.ProjectName, &req.RequesterID, &req.RequesterName, &req.RequesterEmail,
		&reason, &req.Priority, &req.DueDate, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Reason = reason.String
	return req, nil
}
