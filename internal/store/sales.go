package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
)

// InsertSale writes the sale header and fills in the generated id. A zero CreatedAt
// defaults to the database clock.
func InsertSale(ctx context.Context, q Querier, sale *models.Sale) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO sales (customer_name, total, payment_method, status, created_at, notes)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6)
		RETURNING id, created_at`,
		sale.CustomerName,
		sale.Total,
		string(sale.PaymentMethod),
		sale.Status,
		nullTime(sale.CreatedAt),
		sale.Notes,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}

	return nil
}

// InsertSaleItem writes one line of a sale. item.Subtotal must already be set.
func InsertSaleItem(ctx context.Context, q Querier, item *models.SaleItem) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.SaleID,
		item.ProductID,
		item.Quantity,
		item.UnitPrice,
		item.Subtotal,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("create sale item: %w", err)
	}

	return nil
}

const saleColumns = `id, customer_name, total, payment_method, status, created_at, notes`

func scanSale(row rowScanner) (*models.Sale, error) {
	var (
		sale   models.Sale
		method string
	)

	err := row.Scan(
		&sale.ID,
		&sale.CustomerName,
		&sale.Total,
		&method,
		&sale.Status,
		&sale.CreatedAt,
		&sale.Notes,
	)
	if err != nil {
		return nil, err
	}
	sale.PaymentMethod = models.PaymentMethod(method)

	return &sale, nil
}

// GetSale loads a sale with its items, each carrying the product's current name and code.
func GetSale(ctx context.Context, q Querier, id int64) (*models.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	items, err := ListSaleItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	return sale, nil
}

func ListSaleItems(ctx context.Context, q Querier, saleID int64) ([]models.SaleItem, error) {
	itemsQuery := `
		SELECT si.id, si.sale_id, si.product_id, p.name, COALESCE(p.code, p.barcode, ''),
		       si.quantity, si.unit_price, si.subtotal
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id`

	rows, err := q.QueryContext(ctx, itemsQuery, saleID)
	if err != nil {
		return nil, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()

	var items []models.SaleItem
	for rows.Next() {
		var item models.SaleItem
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductCode,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListSales returns sale headers created in [from, to), newest first. A zero bound is open.
func ListSales(ctx context.Context, q Querier, from, to time.Time) ([]models.Sale, error) {
	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}

func ListSalesCursor(ctx context.Context, q Querier, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cursor", database.ErrValidation)
	}

	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := q.QueryContext(ctx, query, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(sales) > limit
	if hasMore {
		sales = sales[:limit]
	}

	var nextCursor string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		nextCursor = EncodeCursor(SaleCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      sales,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
