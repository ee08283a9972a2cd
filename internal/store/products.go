package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

const productColumns = `
	p.id, p.code, p.barcode, p.name, p.description, p.cost_price, p.sale_price,
	p.stock, p.min_stock, p.category_id, COALESCE(c.name, ''), p.unit, p.active,
	p.image_url, p.last_scanned_at, p.created_at, p.updated_at`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		product    models.Product
		code       sql.NullString
		barcode    sql.NullString
		categoryID sql.NullInt64
		unit       string
		imageURL   sql.NullString
		scannedAt  sql.NullTime
	)

	err := row.Scan(
		&product.ID,
		&code,
		&barcode,
		&product.Name,
		&product.Description,
		&product.CostPrice,
		&product.SalePrice,
		&product.Stock,
		&product.MinStock,
		&categoryID,
		&product.CategoryName,
		&unit,
		&product.Active,
		&imageURL,
		&scannedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Code = stringPtr(code)
	product.Barcode = stringPtr(barcode)
	product.CategoryID = int64Ptr(categoryID)
	product.Unit = models.Unit(unit)
	product.ImageURL = stringPtr(imageURL)
	if scannedAt.Valid {
		t := scannedAt.Time
		product.LastScannedAt = &t
	}

	return &product, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// NormalizeToken strips hyphens and whitespace so "789-1000-100103" matches "7891000100103".
func NormalizeToken(token string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(token))
}

// FindByBarcodeOrCode returns the first active product whose barcode or code matches token,
// exactly or after hyphen stripping. On a match last_scanned_at is refreshed; a failure to
// do so is logged and does not affect the result.
func FindByBarcodeOrCode(ctx context.Context, q Querier, token string) (*models.Product, error) {
	exact := strings.TrimSpace(token)
	normalized := NormalizeToken(token)
	if exact == "" || normalized == "" {
		return nil, database.ErrProductNotFound
	}

	query := `SELECT` + productColumns + productFrom + `
		WHERE p.active
		  AND (p.barcode = $1 OR p.code = $1
		       OR replace(replace(p.barcode, '-', ''), ' ', '') = $2
		       OR replace(replace(p.code, '-', ''), ' ', '') = $2)
		ORDER BY COALESCE(p.barcode = $1 OR p.code = $1, FALSE) DESC, p.id
		LIMIT 1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, exact, normalized))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product by barcode: %w", err)
	}

	var scannedAt sql.NullTime
	err = q.QueryRowContext(ctx,
		`UPDATE products SET last_scanned_at = NOW() WHERE id = $1 RETURNING last_scanned_at`,
		product.ID).Scan(&scannedAt)
	if err != nil {
		log.Printf("Update last scanned at for product %d: %v", product.ID, err)
	} else if scannedAt.Valid {
		t := scannedAt.Time
		product.LastScannedAt = &t
	}

	return product, nil
}

func GetProduct(ctx context.Context, q Querier, id int64) (*models.Product, error) {
	query := `SELECT` + productColumns + productFrom + `
		WHERE p.id = $1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListActiveProducts(ctx context.Context, q Querier) ([]models.Product, error) {
	query := `SELECT` + productColumns + productFrom + `
		WHERE p.active
		ORDER BY p.name, p.id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}

	return scanProducts(rows)
}

// ListLowStockProducts returns active products whose stock is at or below their minimum,
// lowest stock first.
func ListLowStockProducts(ctx context.Context, q Querier) ([]models.Product, error) {
	query := `SELECT` + productColumns + productFrom + `
		WHERE p.active AND p.stock <= p.min_stock
		ORDER BY p.stock, p.name, p.id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}

	return scanProducts(rows)
}

func ListProducts(ctx context.Context, q Querier, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT` + productColumns + productFrom + `
		ORDER BY p.name, p.id
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}

// checkUniqueKeys fails with ErrDuplicateKey when code or barcode is taken by another active product.
func checkUniqueKeys(ctx context.Context, q Querier, excludeID int64, code, barcode *string) error {
	if code == nil && barcode == nil {
		return nil
	}

	var field string
	err := q.QueryRowContext(ctx, `
		SELECT CASE WHEN code = $1 THEN 'code' ELSE 'barcode' END
		FROM products
		WHERE active
		  AND id <> $3
		  AND (code = $1 OR barcode = $2)
		LIMIT 1`,
		nullString(code), nullString(barcode), excludeID).Scan(&field)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("check unique keys: %w", err)
	}

	return fmt.Errorf("%w: %s already in use", database.ErrDuplicateKey, field)
}

func duplicateKeyError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && strings.Contains(pqErr.Constraint, "barcode") {
		return fmt.Errorf("%w: barcode already in use", database.ErrDuplicateKey)
	}
	return fmt.Errorf("%w: code already in use", database.ErrDuplicateKey)
}

func categoryReferenceError(err error) error {
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", database.ErrValidation, database.ErrCategoryNotFound)
	}
	return nil
}

// CreateProduct validates input, rejects code/barcode collisions with active products and
// inserts the row. Nothing is written on failure.
func CreateProduct(ctx context.Context, q Querier, input models.ProductInput) (*models.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if input.IsActive() {
		if err := checkUniqueKeys(ctx, q, 0, input.Code, input.Barcode); err != nil {
			return nil, err
		}
	}

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO products (code, barcode, name, description, cost_price, sale_price,
		                      stock, min_stock, category_id, unit, active, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id`,
		nullString(input.Code),
		nullString(input.Barcode),
		input.Name,
		input.Description,
		input.CostPrice,
		input.SalePrice,
		input.Stock,
		input.MinStock,
		nullInt64(input.CategoryID),
		string(input.Unit),
		input.IsActive(),
		nullString(input.ImageURL),
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, duplicateKeyError(err)
		}
		if refErr := categoryReferenceError(err); refErr != nil {
			return nil, refErr
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return GetProduct(ctx, q, id)
}

// UpdateProduct replaces every editable field of product id.
func UpdateProduct(ctx context.Context, q Querier, id int64, input models.ProductInput) (*models.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if input.IsActive() {
		if err := checkUniqueKeys(ctx, q, id, input.Code, input.Barcode); err != nil {
			return nil, err
		}
	}

	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET code = $1, barcode = $2, name = $3, description = $4, cost_price = $5,
		    sale_price = $6, stock = $7, min_stock = $8, category_id = $9, unit = $10,
		    active = $11, image_url = $12, updated_at = NOW()
		WHERE id = $13`,
		nullString(input.Code),
		nullString(input.Barcode),
		input.Name,
		input.Description,
		input.CostPrice,
		input.SalePrice,
		input.Stock,
		input.MinStock,
		nullInt64(input.CategoryID),
		string(input.Unit),
		input.IsActive(),
		nullString(input.ImageURL),
		id,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, duplicateKeyError(err)
		}
		if refErr := categoryReferenceError(err); refErr != nil {
			return nil, refErr
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, database.ErrProductNotFound
	}

	return GetProduct(ctx, q, id)
}

// SetProductActive toggles the active flag. Reactivation re-checks code/barcode uniqueness.
func SetProductActive(ctx context.Context, q Querier, id int64, active bool) error {
	if active {
		product, err := GetProduct(ctx, q, id)
		if err != nil {
			return err
		}
		if err := checkUniqueKeys(ctx, q, id, product.Code, product.Barcode); err != nil {
			return err
		}
	}

	result, err := q.ExecContext(ctx,
		`UPDATE products SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return duplicateKeyError(err)
		}
		return fmt.Errorf("set product active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// LockProduct takes a row lock on the product for the rest of tx.
func LockProduct(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	query := `SELECT` + productColumns + productFrom + `
		WHERE p.id = $1
		FOR UPDATE OF p`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		if database.ClassifyError(err) == database.ErrorClassTransient {
			return nil, fmt.Errorf("%w: %w", database.ErrLockTimeout, err)
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	return product, nil
}

// DecrementStock subtracts quantity from the product's stock. Under StockMayGoNegative the
// subtraction is unconditional; under StockMustStayNonNegative it fails with
// ErrInsufficientStock instead of crossing zero.
func DecrementStock(ctx context.Context, q Querier, productID int64, quantity int, policy StockPolicy) error {
	query := `
		UPDATE products
		SET stock = stock - $1,
		    updated_at = NOW()
		WHERE id = $2`
	if policy == StockMustStayNonNegative {
		query += `
		  AND stock >= $1`
	}

	result, err := q.ExecContext(ctx, query, quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if policy == StockMustStayNonNegative {
			var exists bool
			err := q.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check product exists: %w", err)
			}
			if exists {
				return database.ErrInsufficientStock
			}
		}
		return database.ErrProductNotFound
	}

	return nil
}

// DeleteProduct removes a product. It reports false without an error when sale items
// still reference the product.
func DeleteProduct(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, database.ErrProductNotFound
	}

	return true, nil
}
