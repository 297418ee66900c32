package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/agenda/internal/errors"
)

// Category is a stored category row.
type Category struct {
	ID        string
	User      string
	Name      string
	NameNorm  string
	Color     string
	CreatedAt int64
	UpdatedAt int64
}

const categoryColumns = `id, user_id, name, name_norm, color, created_at, updated_at`

// UpsertCategory stores c, or updates the name and color of the category
// with the same normalized name for the user. The stored row is returned;
// on update it keeps its original ID and created_at.
func UpsertCategory(ctx context.Context, q Querier, c *Category) (*Category, error) {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name_norm) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query,
		c.ID, c.User, c.Name, c.NameNorm, c.Color, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return nil, errors.NewInternal(err)
	}
	return GetCategoryByName(ctx, q, c.User, c.NameNorm)
}

// InsertCategory stores a new category, failing on an ID or name collision.
func InsertCategory(ctx context.Context, q Querier, c *Category) error {
	query := `INSERT INTO categories (` + categoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query,
		c.ID, c.User, c.Name, c.NameNorm, c.Color, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// ReplaceCategory inserts c or overwrites the category with the same ID.
func ReplaceCategory(ctx context.Context, q Querier, c *Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			name_norm = excluded.name_norm,
			color = excluded.color,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query,
		c.ID, c.User, c.Name, c.NameNorm, c.Color, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetCategory retrieves a user's category by ID.
func GetCategory(ctx context.Context, q Querier, user, id string) (*Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND id = ?`, user, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("category", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// GetCategoryByName retrieves a user's category by normalized name.
func GetCategoryByName(ctx context.Context, q Querier, user, nameNorm string) (*Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name_norm = ?`, user, nameNorm)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("category", nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListCategories returns a user's categories ordered by name.
// An empty user lists every user's categories.
func ListCategories(ctx context.Context, q Querier, user string) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if user != "" {
		query += ` WHERE user_id = ?`
		args = append(args, user)
	}
	query += ` ORDER BY user_id, name_norm, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteCategory removes a category. Events referencing it are left alone
// and expand with no category.
func DeleteCategory(ctx context.Context, q Querier, user, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, user, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "category", id)
}

func scanCategory(row rowScanner) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.User, &c.Name, &c.NameNorm, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
