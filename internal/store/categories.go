package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gudangmitra/gudang/internal/model"
)

// CreateCategory creates a category with a new UUID.
func CreateCategory(ctx context.Context, db *sql.DB, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name required")
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)`,
		id, name, nullString(description),
	)
	if isUniqueViolation(err) {
		return nil, conflictf("category %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	return GetCategory(ctx, db, id)
}

// GetCategory returns a category with its active item count.
func GetCategory(ctx context.Context, db *sql.DB, id string) (*model.Category, error) {
	c, err := scanCategory(db.QueryRowContext(ctx, categoryQuery+` WHERE c.id = ? GROUP BY c.id`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("category %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *sql.DB) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx, categoryQuery+` GROUP BY c.id ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category. Items filed under the old name follow.
func UpdateCategory(ctx context.Context, db *sql.DB, id, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internalErr("beginning transaction", err)
	}
	defer tx.Rollback()

	var oldName string
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, id).Scan(&oldName)
	if err == sql.ErrNoRows {
		return nil, notFoundf("category %s", id)
	}
	if err != nil {
		return nil, internalErr("reading category", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, nullString(description), id,
	)
	if isUniqueViolation(err) {
		return nil, conflictf("category %q already exists", name)
	}
	if err != nil {
		return nil, internalErr("updating category", err)
	}

	if oldName != name {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET category = ? WHERE category = ?`, name, oldName); err != nil {
			return nil, internalErr("moving items to renamed category", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internalErr("committing category update", err)
	}
	return GetCategory(ctx, db, id)
}

// DeleteCategory removes a category. Items keep their category text.
func DeleteCategory(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return requireAffected(result, notFoundf("category %s", id))
}

const categoryQuery = `SELECT c.id, c.name, c.description, COUNT(i.id), c.created_at, c.updated_at
	FROM categories c
	LEFT JOIN items i ON i.category = c.name AND i.is_active = 1`

func scanCategory(row rowScanner) (*model.Category, error) {
	c := &model.Category{}
	var description sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &description, &c.ItemCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = description.String
	return c, nil
}
