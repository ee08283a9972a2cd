package api

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/report"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/shopspring/decimal"
)

type fakeCatalog struct {
	mu         sync.Mutex
	nextID     int64
	products   map[int64]*models.Product
	categories map[int64]*models.Category
	sales      map[int64]*models.Sale
	sold       map[int64]bool
	salesErr   error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		nextID:     1,
		products:   map[int64]*models.Product{},
		categories: map[int64]*models.Category{},
		sales:      map[int64]*models.Sale{},
		sold:       map[int64]bool{},
	}
}

func (c *fakeCatalog) addProduct(code, name, price string) *models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := &models.Product{
		ID:        c.nextID,
		Code:      &code,
		Name:      name,
		SalePrice: decimal.RequireFromString(price),
		Stock:     10,
		Unit:      models.UnitPiece,
		Active:    true,
	}
	c.nextID++
	c.products[p.ID] = p
	return p
}

func (c *fakeCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Category
	for _, cat := range c.categories {
		out = append(out, *cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *fakeCatalog) CreateCategory(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cat := &models.Category{ID: c.nextID, Name: input.Name, Description: input.Description}
	c.nextID++
	c.categories[cat.ID] = cat
	return cat, nil
}

func (c *fakeCatalog) UpdateCategory(ctx context.Context, id int64, input models.CategoryInput) (*models.Category, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, ok := c.categories[id]
	if !ok {
		return nil, database.ErrCategoryNotFound
	}
	cat.Name = input.Name
	cat.Description = input.Description
	return cat, nil
}

func (c *fakeCatalog) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.categories[id]; !ok {
		return false, database.ErrCategoryNotFound
	}
	for _, p := range c.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			return false, nil
		}
	}
	delete(c.categories, id)
	return true, nil
}

func (c *fakeCatalog) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	products, _ := c.ListActiveProducts(ctx)
	return store.NewOffsetPage(products, int64(len(products)), page, pageSize), nil
}

func (c *fakeCatalog) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Product
	for _, p := range c.products {
		if p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.Active && input.Code != nil && p.Code != nil && *p.Code == *input.Code {
			return nil, database.ErrDuplicateKey
		}
	}

	p := &models.Product{
		ID:        c.nextID,
		Code:      input.Code,
		Barcode:   input.Barcode,
		Name:      input.Name,
		SalePrice: input.SalePrice,
		Stock:     input.Stock,
		Unit:      input.Unit,
		Active:    input.IsActive(),
	}
	c.nextID++
	c.products[p.ID] = p
	return p, nil
}

func (c *fakeCatalog) UpdateProduct(ctx context.Context, id int64, input models.ProductInput) (*models.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	p.Name = input.Name
	p.SalePrice = input.SalePrice
	return p, nil
}

func (c *fakeCatalog) SetProductActive(ctx context.Context, id int64, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return database.ErrProductNotFound
	}
	p.Active = active
	return nil
}

func (c *fakeCatalog) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[id]; !ok {
		return false, database.ErrProductNotFound
	}
	if c.sold[id] {
		return false, nil
	}
	delete(c.products, id)
	return true, nil
}

func (c *fakeCatalog) FindByBarcodeOrCode(ctx context.Context, token string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	norm := store.NormalizeToken(token)
	for _, p := range c.products {
		if !p.Active {
			continue
		}
		if p.Code != nil && store.NormalizeToken(*p.Code) == norm {
			cp := *p
			return &cp, nil
		}
		if p.Barcode != nil && store.NormalizeToken(*p.Barcode) == norm {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrProductNotFound
}

func (c *fakeCatalog) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sale, ok := c.sales[id]
	if !ok {
		return nil, database.ErrSaleNotFound
	}
	return sale, nil
}

func (c *fakeCatalog) ListSales(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Sale
	for _, s := range c.sales {
		if (!from.IsZero() && s.CreatedAt.Before(from)) || (!to.IsZero() && !s.CreatedAt.Before(to)) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (c *fakeCatalog) ListSalesCursor(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, fmt.Errorf("%w: invalid cursor", database.ErrValidation)
	}
	if c.salesErr != nil {
		return nil, c.salesErr
	}
	sales, _ := c.ListSales(ctx, time.Time{}, time.Time{})
	return &store.CursorPage{Items: sales}, nil
}

// recordingCheckout stores successful sales in the fake catalog.
type recordingCheckout struct {
	catalog *fakeCatalog
	err     error
	calls   int
}

func (f *recordingCheckout) Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	f.catalog.mu.Lock()
	defer f.catalog.mu.Unlock()

	var total decimal.Decimal
	sale := &models.Sale{
		ID:            int64(len(f.catalog.sales) + 1),
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
		Status:        models.SaleStatusCompleted,
		CreatedAt:     time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
	}
	for _, line := range req.Lines {
		total = total.Add(line.Subtotal())
		sale.Items = append(sale.Items, models.SaleItem{
			SaleID:      sale.ID,
			ProductID:   line.ProductID,
			ProductName: line.Name,
			ProductCode: line.Code,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
		})
		f.catalog.sold[line.ProductID] = true
	}
	sale.Total = total
	f.catalog.sales[sale.ID] = sale

	res := &checkout.Result{SaleID: sale.ID, Sale: sale, Total: total}
	if req.Tendered != nil {
		t := *req.Tendered
		res.Tendered = &t
		res.Change = t.Sub(total)
	}
	return res, nil
}

type stubReports struct{}

func (stubReports) Summary(ctx context.Context, from, to time.Time) (*report.SalesSummary, error) {
	return &report.SalesSummary{Count: 2, Total: decimal.RequireFromString("20.00"), AverageTicket: decimal.RequireFromString("10.00")}, nil
}

func (stubReports) TopProducts(ctx context.Context, since time.Time, limit int) ([]report.ProductSales, error) {
	return nil, nil
}

func (stubReports) DailyTotals(ctx context.Context, since time.Time) ([]report.DailyTotal, error) {
	return nil, nil
}

func (stubReports) ByPaymentMethod(ctx context.Context, from, to time.Time) ([]report.PaymentTotal, error) {
	return nil, nil
}

func (stubReports) LowStock(ctx context.Context) ([]models.Product, error) {
	return nil, nil
}

func (stubReports) InventoryValue(ctx context.Context) (*report.InventorySummary, error) {
	return &report.InventorySummary{}, nil
}

func (stubReports) StockValueByCategory(ctx context.Context) ([]report.CategoryStock, error) {
	return nil, nil
}

type stubExporter struct {
	body string
}

func (e stubExporter) ExportSalesXLSX(ctx context.Context, w io.Writer, from, to time.Time) error {
	_, err := io.WriteString(w, e.body)
	return err
}
