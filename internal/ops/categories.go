package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/planner"
)

// SaveCategoryInput contains parameters for the SaveCategory operation.
type SaveCategoryInput struct {
	User  string // default: cfg.DefaultUser
	Name  string // required; unique per user after normalization
	Color string // #RRGGBB; default: cfg.DefaultCategoryColor
}

// CategoryOutput is a category as returned to callers.
type CategoryOutput struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func toCategoryOutput(c *db.Category) CategoryOutput {
	return CategoryOutput{
		ID:        c.ID,
		User:      c.User,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// SaveCategory creates a category, or updates the color of the user's
// category with the same name.
func SaveCategory(ctx context.Context, database *sql.DB, cfg *config.Config, input SaveCategoryInput) (*CategoryOutput, error) {
	name := strings.TrimSpace(input.Name)
	nameNorm := planner.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if utf8.RuneCountInString(name) > MaxTitleChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("name exceeds %d characters", MaxTitleChars))
	}

	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = cfg.DefaultCategoryColor
	}
	if !planner.ValidColor(color) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("color %q must be #RRGGBB", color))
	}
	color = strings.ToUpper(color)

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()

	stored, err := db.UpsertCategory(ctx, database, &db.Category{
		ID:        id,
		User:      resolveUser(cfg, input.User),
		Name:      name,
		NameNorm:  nameNorm,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	out := toCategoryOutput(stored)
	return &out, nil
}

// ListCategoriesInput contains parameters for the ListCategories operation.
type ListCategoriesInput struct {
	User string
}

// ListCategoriesOutput contains the result of the ListCategories operation.
type ListCategoriesOutput struct {
	Items []CategoryOutput `json:"items"`
}

// ListCategories returns the user's categories ordered by name.
func ListCategories(ctx context.Context, database *sql.DB, cfg *config.Config, input ListCategoriesInput) (*ListCategoriesOutput, error) {
	rows, err := db.ListCategories(ctx, database, resolveUser(cfg, input.User))
	if err != nil {
		return nil, err
	}
	out := &ListCategoriesOutput{Items: make([]CategoryOutput, 0, len(rows))}
	for i := range rows {
		out.Items = append(out.Items, toCategoryOutput(&rows[i]))
	}
	return out, nil
}

// DeleteCategoryInput contains parameters for the DeleteCategory operation.
type DeleteCategoryInput struct {
	User string
	ID   string // required
}

// DeleteCategoryOutput contains the result of the DeleteCategory operation.
type DeleteCategoryOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteCategory removes a category. Its events keep their category_id and
// show up uncategorized.
func DeleteCategory(ctx context.Context, database *sql.DB, cfg *config.Config, input DeleteCategoryInput) (*DeleteCategoryOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.DeleteCategory(ctx, database, resolveUser(cfg, input.User), id); err != nil {
		return nil, err
	}
	return &DeleteCategoryOutput{ID: id, Deleted: true}, nil
}
