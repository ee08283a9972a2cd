// Package report answers the dashboard queries over sales and stock. Every method is a
// read-only query that is safe to call concurrently with checkouts.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/shopspring/decimal"
)

// UncategorizedLabel groups products without a category.
const UncategorizedLabel = "Uncategorized"

type SalesSummary struct {
	Count         int64           `json:"count"`
	Total         decimal.Decimal `json:"total"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type DailyTotal struct {
	Day   time.Time       `json:"day"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type PaymentTotal struct {
	Method models.PaymentMethod `json:"method"`
	Count  int64                `json:"count"`
	Total  decimal.Decimal      `json:"total"`
}

type InventorySummary struct {
	Products  int64           `json:"products"`
	Units     int64           `json:"units"`
	Value     decimal.Decimal `json:"value"`
	CostValue decimal.Decimal `json:"cost_value"`
}

type CategoryStock struct {
	Category string          `json:"category"`
	Products int64           `json:"products"`
	Units    int64           `json:"units"`
	Value    decimal.Decimal `json:"value"`
}

type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Summary counts completed sales in [from, to). A zero bound is open. The average ticket
// is zero when there are no sales.
func (r *Reader) Summary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	var summary SalesSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE status = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)`,
		models.SaleStatusCompleted, bound(from), bound(to),
	).Scan(&summary.Count, &summary.Total)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	summary.AverageTicket = decimal.Zero
	if summary.Count > 0 {
		summary.AverageTicket = summary.Total.Div(decimal.NewFromInt(summary.Count)).Round(2)
	}

	return &summary, nil
}

// TopProducts ranks products by units sold since the given time, ties broken by revenue.
func (r *Reader) TopProducts(ctx context.Context, since time.Time, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, SUM(si.quantity), SUM(si.subtotal)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.status = $1
		  AND ($2::timestamptz IS NULL OR s.created_at >= $2)
		GROUP BY p.id, p.name
		ORDER BY SUM(si.quantity) DESC, SUM(si.subtotal) DESC, p.id
		LIMIT $3`,
		models.SaleStatusCompleted, bound(since), limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var top []ProductSales
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.Quantity, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		top = append(top, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return top, nil
}

// DailyTotals groups sales by calendar day in the database's time zone, oldest first.
func (r *Reader) DailyTotals(ctx context.Context, since time.Time) ([]DailyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at::date AS day, COUNT(*), SUM(total)
		FROM sales
		WHERE status = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		GROUP BY day
		ORDER BY day`,
		models.SaleStatusCompleted, bound(since))
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var days []DailyTotal
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.Day, &d.Count, &d.Total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return days, nil
}

func (r *Reader) ByPaymentMethod(ctx context.Context, from, to time.Time) ([]PaymentTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*), SUM(total)
		FROM sales
		WHERE status = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		GROUP BY payment_method
		ORDER BY SUM(total) DESC, payment_method`,
		models.SaleStatusCompleted, bound(from), bound(to))
	if err != nil {
		return nil, fmt.Errorf("totals by payment method: %w", err)
	}
	defer rows.Close()

	var totals []PaymentTotal
	for rows.Next() {
		var (
			pt     PaymentTotal
			method string
		)
		if err := rows.Scan(&method, &pt.Count, &pt.Total); err != nil {
			return nil, fmt.Errorf("scan payment total: %w", err)
		}
		pt.Method = models.PaymentMethod(method)
		totals = append(totals, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return totals, nil
}

// LowStock lists active products with stock <= min_stock.
func (r *Reader) LowStock(ctx context.Context) ([]models.Product, error) {
	return store.ListLowStockProducts(ctx, r.db)
}

// InventoryValue values the stock on hand of active products. Negative stock counts
// against the total.
func (r *Reader) InventoryValue(ctx context.Context) (*InventorySummary, error) {
	var inv InventorySummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(stock), 0),
		       COALESCE(SUM(sale_price * stock), 0),
		       COALESCE(SUM(cost_price * stock), 0)
		FROM products
		WHERE active`,
	).Scan(&inv.Products, &inv.Units, &inv.Value, &inv.CostValue)
	if err != nil {
		return nil, fmt.Errorf("inventory value: %w", err)
	}

	return &inv, nil
}

func (r *Reader) StockValueByCategory(ctx context.Context) ([]CategoryStock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(c.name, $1::text),
		       COUNT(*),
		       COALESCE(SUM(p.stock), 0),
		       COALESCE(SUM(p.sale_price * p.stock), 0)
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.active
		GROUP BY c.id, c.name
		ORDER BY 4 DESC, 1`,
		UncategorizedLabel)
	if err != nil {
		return nil, fmt.Errorf("stock value by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryStock
	for rows.Next() {
		var cs CategoryStock
		if err := rows.Scan(&cs.Category, &cs.Products, &cs.Units, &cs.Value); err != nil {
			return nil, fmt.Errorf("scan category stock: %w", err)
		}
		out = append(out, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func bound(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
