package report

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/tealeg/xlsx"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	timestampLayout = "2006-01-02 15:04:05"
)

type exportItem struct {
	SaleID    int64
	ProductID int64
	Name      string
	Code      string
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// ExportSalesXLSX writes the sales created in [from, to) as a workbook with a "Sales"
// sheet and an "Items" sheet. Both sheets are read from one snapshot so they agree.
func (r *Reader) ExportSalesXLSX(ctx context.Context, w io.Writer, from, to time.Time) error {
	var (
		sales []models.Sale
		items []exportItem
	)

	err := database.WithTransaction(ctx, r.db, database.SnapshotTxOptions(), func(tx *sql.Tx) error {
		var err error
		sales, err = store.ListSales(ctx, tx, from, to)
		if err != nil {
			return err
		}
		items, err = exportItems(ctx, tx, from, to)
		return err
	})
	if err != nil {
		return fmt.Errorf("load sales for export: %w", err)
	}

	file := xlsx.NewFile()

	salesSheet, err := file.AddSheet("Sales")
	if err != nil {
		return fmt.Errorf("add sales sheet: %w", err)
	}
	addHeader(salesSheet, "ID", "Date", "Customer", "Payment Method", "Status", "Total", "Notes")
	for _, s := range sales {
		row := salesSheet.AddRow()
		row.AddCell().SetValue(s.ID)
		row.AddCell().SetString(s.CreatedAt.Format(timestampLayout))
		row.AddCell().SetString(s.CustomerName)
		row.AddCell().SetString(string(s.PaymentMethod))
		row.AddCell().SetString(s.Status)
		row.AddCell().SetFloat(s.Total.InexactFloat64())
		row.AddCell().SetString(s.Notes)
	}

	itemsSheet, err := file.AddSheet("Items")
	if err != nil {
		return fmt.Errorf("add items sheet: %w", err)
	}
	addHeader(itemsSheet, "Sale ID", "Product ID", "Product", "Code", "Quantity", "Unit Price", "Subtotal")
	for _, it := range items {
		row := itemsSheet.AddRow()
		row.AddCell().SetValue(it.SaleID)
		row.AddCell().SetValue(it.ProductID)
		row.AddCell().SetString(it.Name)
		row.AddCell().SetString(it.Code)
		row.AddCell().SetInt(it.Quantity)
		row.AddCell().SetFloat(it.UnitPrice)
		row.AddCell().SetFloat(it.Subtotal)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	return nil
}

func addHeader(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, title := range titles {
		row.AddCell().SetValue(title)
	}
}

func exportItems(ctx context.Context, tx *sql.Tx, from, to time.Time) ([]exportItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT si.sale_id, si.product_id, p.name, COALESCE(p.code, p.barcode, ''),
		       si.quantity, si.unit_price, si.subtotal
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE ($1::timestamptz IS NULL OR s.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR s.created_at < $2)
		ORDER BY s.created_at DESC, s.id DESC, si.id`,
		bound(from), bound(to))
	if err != nil {
		return nil, fmt.Errorf("export items: %w", err)
	}
	defer rows.Close()

	var items []exportItem
	for rows.Next() {
		var it exportItem
		if err := rows.Scan(&it.SaleID, &it.ProductID, &it.Name, &it.Code, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan export item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
