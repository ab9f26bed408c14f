package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gudangmitra/gudang/internal/model"
)

// TransitionOptions tunes SetRequestStatus.
type TransitionOptions struct {
	// StrictStock rejects an approval when any line asks for more than is
	// on hand. Otherwise the decrement is clamped at zero and the shortfall
	// is reported in the result.
	StrictStock bool
}

// SetRequestStatus moves a request to status. Approving a request decrements
// every referenced item and recomputes its stock status in the same
// transaction as the status change; on any failure nothing is written.
func SetRequestStatus(ctx context.Context, db *sql.DB, id, status string, opts TransitionOptions) (*model.StatusChange, error) {
	if !model.ValidRequestStatus(status) {
		return nil, validationf("invalid status %q", status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM requests WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, notFoundf("request %s", id)
	}
	if err != nil {
		return nil, internalErr("reading request status", err)
	}

	if !model.CanTransition(current, status) {
		return nil, conflictf("request %s cannot move from %s to %s", id, current, status)
	}

	change := &model.StatusChange{From: current, To: status}

	if status == model.RequestApproved {
		adjustments, err := planDecrements(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if opts.StrictStock {
			for _, a := range adjustments {
				if a.Shortfall > 0 {
					return nil, fmt.Errorf("%w: %s needs %d, %d on hand", ErrInsufficientStock, a.Name, a.Requested, a.Before)
				}
			}
		}
		if err := applyDecrements(ctx, tx, adjustments); err != nil {
			return nil, err
		}
		change.Adjustments = adjustments
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		status, id, current,
	)
	if err != nil {
		return nil, internalErr("updating request status", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, internalErr("checking request update", err)
	}
	if n == 0 {
		return nil, conflictf("request %s was modified concurrently", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, internalErr("committing status change", err)
	}

	change.Request, err = GetRequest(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return change, nil
}

// planDecrements reads the request's lines against current stock. Lines for
// the same item are summed.
func planDecrements(ctx context.Context, tx *sql.Tx, requestID string) ([]model.StockAdjustment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT i.id, i.name, SUM(ri.quantity), i.quantity, i.min_quantity
		 FROM request_items ri
		 JOIN items i ON i.id = ri.item_id
		 WHERE ri.request_id = ?
		 GROUP BY i.id, i.name, i.quantity, i.min_quantity
		 ORDER BY i.id`, requestID,
	)
	if err != nil {
		return nil, internalErr("reading request items", err)
	}
	defer rows.Close()

	var adjustments []model.StockAdjustment
	for rows.Next() {
		var a model.StockAdjustment
		var minQuantity int
		if err := rows.Scan(&a.ItemID, &a.Name, &a.Requested, &a.Before, &minQuantity); err != nil {
			return nil, internalErr("scanning request item", err)
		}
		a.After = max(0, a.Before-a.Requested)
		a.Shortfall = max(0, a.Requested-a.Before)
		a.Status = model.DeriveStatus(a.After, minQuantity)
		adjustments = append(adjustments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("reading request items", err)
	}
	return adjustments, nil
}

// applyDecrements writes each planned quantity, guarded by the quantity that
// was read. A row that changed in between is a conflict.
func applyDecrements(ctx context.Context, tx *sql.Tx, adjustments []model.StockAdjustment) error {
	for _, a := range adjustments {
		result, err := tx.ExecContext(ctx,
			`UPDATE items SET quantity = ?, status = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND quantity = ?`,
			a.After, a.Status, a.ItemID, a.Before,
		)
		if err != nil {
			return internalErr(fmt.Sprintf("decrementing item %d", a.ItemID), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return internalErr(fmt.Sprintf("checking item %d update", a.ItemID), err)
		}
		if n == 0 {
			return conflictf("item %d changed during approval", a.ItemID)
		}
	}
	return nil
}
