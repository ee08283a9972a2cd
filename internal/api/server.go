// Package api exposes the point-of-sale operations over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/receipt"
	"github.com/safar/go-pos-store/internal/report"
	"github.com/safar/go-pos-store/internal/scanner"
	"github.com/safar/go-pos-store/internal/session"
	"github.com/safar/go-pos-store/internal/store"
)

const SessionCookie = "pos_session"

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, input models.CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, input models.CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) (bool, error)

	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, input models.ProductInput) (*models.Product, error)
	SetProductActive(ctx context.Context, id int64, active bool) error
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	FindByBarcodeOrCode(ctx context.Context, token string) (*models.Product, error)

	GetSale(ctx context.Context, id int64) (*models.Sale, error)
	ListSales(ctx context.Context, from, to time.Time) ([]models.Sale, error)
	ListSalesCursor(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
}

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

type Reports interface {
	Summary(ctx context.Context, from, to time.Time) (*report.SalesSummary, error)
	TopProducts(ctx context.Context, since time.Time, limit int) ([]report.ProductSales, error)
	DailyTotals(ctx context.Context, since time.Time) ([]report.DailyTotal, error)
	ByPaymentMethod(ctx context.Context, from, to time.Time) ([]report.PaymentTotal, error)
	LowStock(ctx context.Context) ([]models.Product, error)
	InventoryValue(ctx context.Context) (*report.InventorySummary, error)
	StockValueByCategory(ctx context.Context) ([]report.CategoryStock, error)
}

type Exporter interface {
	ExportSalesXLSX(ctx context.Context, w io.Writer, from, to time.Time) error
}

type Deps struct {
	Catalog  CatalogStore
	Checkout Checkouter
	Reports  Reports
	Exporter Exporter
	Sessions *session.Manager
	Receipts *receipt.Renderer
	Scanner  *scanner.Scanner
	// Invalidate is called after every write that changes report results. Optional.
	Invalidate func(ctx context.Context)
}

type Server struct {
	catalog    CatalogStore
	checkout   Checkouter
	reports    Reports
	exporter   Exporter
	sessions   *session.Manager
	receipts   *receipt.Renderer
	scanner    *scanner.Scanner
	invalidate func(ctx context.Context)
}

func NewServer(d Deps) *Server {
	s := &Server{
		catalog:    d.Catalog,
		checkout:   d.Checkout,
		reports:    d.Reports,
		exporter:   d.Exporter,
		sessions:   d.Sessions,
		receipts:   d.Receipts,
		scanner:    d.Scanner,
		invalidate: d.Invalidate,
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(time.Second)
	}
	if s.receipts == nil {
		s.receipts = receipt.NewRenderer("POS Store", "R$")
	}
	if s.scanner == nil {
		s.scanner = scanner.New(nil, d.Catalog.FindByBarcodeOrCode)
	}
	if s.invalidate == nil {
		s.invalidate = func(context.Context) {}
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.withSession)

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.listCategories)
		r.Post("/", s.createCategory)
		r.Put("/{id}", s.updateCategory)
		r.Delete("/{id}", s.deleteCategory)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.createProduct)
		r.Get("/lookup/{token}", s.lookupProduct)
		r.Get("/{id}", s.getProduct)
		r.Put("/{id}", s.updateProduct)
		r.Patch("/{id}/active", s.setProductActive)
		r.Delete("/{id}", s.deleteProduct)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.getCart)
		r.Delete("/", s.clearCart)
		r.Post("/items", s.addCartItem)
		r.Post("/scan", s.scanCartItem)
		r.Put("/items/{index}", s.updateCartItem)
		r.Delete("/items/{index}", s.removeCartItem)
	})

	r.Post("/checkout", s.recordSale)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Put("/edit", s.setEditTarget)
		r.Delete("/edit", s.clearEditTarget)
	})

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", s.listSales)
		r.Get("/{id}", s.getSale)
		r.Get("/{id}/receipt", s.saleReceipt)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/summary", s.reportSummary)
		r.Get("/top-products", s.reportTopProducts)
		r.Get("/daily", s.reportDaily)
		r.Get("/payments", s.reportPayments)
		r.Get("/low-stock", s.reportLowStock)
		r.Get("/inventory", s.reportInventory)
		r.Get("/categories", s.reportCategories)
		r.Get("/export.xlsx", s.exportSales)
	})

	return r
}

// withSession attaches the caller's session, creating one when the cookie is missing or
// stale. Requests for the same session run one at a time.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session.Session
		if c, err := r.Cookie(SessionCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				sess, _ = s.sessions.Get(id)
			}
		}
		if sess == nil {
			sess = s.sessions.New()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID.String(),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess.Lock()
		defer sess.Unlock()

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}
