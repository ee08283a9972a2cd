package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

// DefaultCategories are inserted by SeedDefaultCategories into an empty catalog.
var DefaultCategories = []models.CategoryInput{
	{Name: "Foods", Description: "Food products"},
	{Name: "Beverages", Description: "Assorted beverages"},
	{Name: "Cleaning", Description: "Cleaning products"},
	{Name: "Hygiene", Description: "Personal hygiene products"},
	{Name: "Others", Description: "Miscellaneous products"},
}

func CreateCategory(ctx context.Context, q Querier, input models.CategoryInput) (*models.Category, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	category := &models.Category{}

	query := `
		INSERT INTO categories (name, description, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, description, created_at`

	err := q.QueryRowContext(ctx, query, input.Name, input.Description).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategory(ctx context.Context, q Querier, id int64) (*models.Category, error) {
	category := &models.Category{}

	query := `
		SELECT id, name, description, created_at
		FROM categories
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, q Querier) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, created_at
		FROM categories
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Description,
			&category.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func UpdateCategory(ctx context.Context, q Querier, id int64, input models.CategoryInput) (*models.Category, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	category := &models.Category{}

	query := `
		UPDATE categories
		SET name = $1, description = $2
		WHERE id = $3
		RETURNING id, name, description, created_at`

	err := q.QueryRowContext(ctx, query, input.Name, input.Description, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

// DeleteCategory is blocked while products still reference the category: it then reports
// false without an error.
func DeleteCategory(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, database.ErrCategoryNotFound
	}

	return true, nil
}

// SeedDefaultCategories fills an empty categories table with DefaultCategories.
func SeedDefaultCategories(ctx context.Context, db *sql.DB) (int, error) {
	seeded := 0

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		// Serialises concurrent seeders so only one of them sees an empty table.
		if _, err := tx.ExecContext(ctx, `LOCK TABLE categories IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock categories: %w", err)
		}

		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if count > 0 {
			return nil
		}

		for _, input := range DefaultCategories {
			if _, err := CreateCategory(ctx, tx, input); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return seeded, nil
}
