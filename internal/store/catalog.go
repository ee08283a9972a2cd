package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-pos-store/internal/models"
)

// Catalog binds the package functions to one connection pool.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return ListCategories(ctx, c.db)
}

func (c *Catalog) CreateCategory(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	return CreateCategory(ctx, c.db, input)
}

func (c *Catalog) UpdateCategory(ctx context.Context, id int64, input models.CategoryInput) (*models.Category, error) {
	return UpdateCategory(ctx, c.db, id, input)
}

func (c *Catalog) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	return DeleteCategory(ctx, c.db, id)
}

func (c *Catalog) ListProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, c.db, page, pageSize)
}

func (c *Catalog) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	return ListActiveProducts(ctx, c.db)
}

func (c *Catalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, c.db, id)
}

func (c *Catalog) CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	return CreateProduct(ctx, c.db, input)
}

func (c *Catalog) UpdateProduct(ctx context.Context, id int64, input models.ProductInput) (*models.Product, error) {
	return UpdateProduct(ctx, c.db, id, input)
}

func (c *Catalog) SetProductActive(ctx context.Context, id int64, active bool) error {
	return SetProductActive(ctx, c.db, id, active)
}

func (c *Catalog) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	return DeleteProduct(ctx, c.db, id)
}

func (c *Catalog) FindByBarcodeOrCode(ctx context.Context, token string) (*models.Product, error) {
	return FindByBarcodeOrCode(ctx, c.db, token)
}

func (c *Catalog) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	return GetSale(ctx, c.db, id)
}

func (c *Catalog) ListSales(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	return ListSales(ctx, c.db, from, to)
}

func (c *Catalog) ListSalesCursor(ctx context.Context, cursor string, limit int) (*CursorPage, error) {
	return ListSalesCursor(ctx, c.db, cursor, limit)
}
