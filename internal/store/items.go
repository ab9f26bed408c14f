package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gudangmitra/gudang/internal/model"
)

const itemColumns = `id, name, description, category, quantity, min_quantity, status, price, location,
	is_active, image_mime, last_restocked, created_at, updated_at`

func validateItem(item *model.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return validationf("name required")
	}
	if item.Quantity < 0 {
		return validationf("quantity must not be negative")
	}
	if item.MinQuantity < 0 {
		return validationf("minQuantity must not be negative")
	}
	if item.Price.IsNegative() {
		return validationf("price must not be negative")
	}
	return nil
}

// CreateItem creates a new active item. Status is derived from the quantities.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if err := validateItem(&item); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, description, category, quantity, min_quantity, status, price, location, last_restocked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, CASE WHEN ? > 0 THEN CURRENT_TIMESTAMP END)`,
		item.Name, nullString(item.Description), nullString(item.Category), item.Quantity, item.MinQuantity,
		model.DeriveStatus(item.Quantity, item.MinQuantity), item.Price, nullString(item.Location), item.Quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, active or not.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, notFoundf("item %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching the filter, ordered by name.
func ListItems(ctx context.Context, db *sql.DB, filter model.ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if !filter.IncludeInactive {
		query += ` AND is_active = 1`
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		query += ` AND (name LIKE ? OR description LIKE ?)`
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies patch to the stored item and recomputes its status.
// The write only lands if quantity still holds the value read in the same
// transaction. A quantity increase is recorded as a restock.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, patch model.ItemPatch) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, notFoundf("item %d", id)
	}
	if err != nil {
		return nil, internalErr("reading item", err)
	}

	read := item.Quantity
	patch.Apply(item)
	if err := validateItem(item); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, quantity = ?, min_quantity = ?, status = ?,
		        price = ?, location = ?, is_active = ?,
		        last_restocked = CASE WHEN ? > quantity THEN CURRENT_TIMESTAMP ELSE last_restocked END,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity = ?`,
		item.Name, nullString(item.Description), nullString(item.Category), item.Quantity, item.MinQuantity,
		model.DeriveStatus(item.Quantity, item.MinQuantity), item.Price, nullString(item.Location), item.IsActive,
		item.Quantity, id, read,
	)
	if err != nil {
		return nil, internalErr("updating item", err)
	}
	if err := requireAffected(result, conflictf("item %d changed during update", id)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, internalErr("committing item update", err)
	}
	return GetItem(ctx, db, id)
}

// DeleteItem removes an item. Items referenced by any request line are
// deactivated instead so request history stays intact; soft reports which
// happened.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) (soft bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	var exists, referenced bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE id = ?),
		        EXISTS (SELECT 1 FROM request_items WHERE item_id = ?)`, id, id,
	).Scan(&exists, &referenced)
	if err != nil {
		return false, internalErr("checking item references", err)
	}
	if !exists {
		return false, notFoundf("item %d", id)
	}

	if referenced {
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	}
	if err != nil {
		return false, internalErr("deleting item", err)
	}

	if err := tx.Commit(); err != nil {
		return false, internalErr("committing item delete", err)
	}
	return referenced, nil
}

// SetItemImage stores an item's photo.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return requireAffected(result, notFoundf("item %d", id))
}

// GetItemImage returns an item's photo and MIME type. data is nil when the
// item has no photo.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", notFoundf("item %d", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description, category, location, imageMime sql.NullString
	err := row.Scan(&item.ID, &item.Name, &description, &category, &item.Quantity, &item.MinQuantity,
		&item.Status, &item.Price, &location, &item.IsActive, &imageMime, &item.LastRestocked,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Category = category.String
	item.Location = location.String
	item.ImageMime = imageMime.String
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
