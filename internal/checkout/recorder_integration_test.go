package checkout_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/safar/go-pos-store/internal/testutil/pgtest"
	"github.com/shopspring/decimal"
)

// failingLedger delegates to SQLLedger and fails the n-th sale item insert.
type failingLedger struct {
	checkout.SQLLedger
	failAt int
	calls  int
}

func (l *failingLedger) InsertSaleItem(ctx context.Context, tx *sql.Tx, item *models.SaleItem) error {
	l.calls++
	if l.calls == l.failAt {
		return errors.New("simulated write failure")
	}
	return l.SQLLedger.InsertSaleItem(ctx, tx, item)
}

func createProduct(t *testing.T, db *sql.DB, code, name, price string, stock int) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, models.ProductInput{
		Code:      &code,
		Name:      name,
		SalePrice: decimal.RequireFromString(price),
		Stock:     stock,
		Unit:      models.UnitPiece,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return product
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("Count %s: %v", table, err)
	}
	return n
}

func stockOf(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, id)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return product.Stock
}

func TestCheckoutPersistsSale(t *testing.T) {
	db, cleanup := pgtest.Setup(t)
	defer cleanup()

	ctx := context.Background()
	coffee := createProduct(t, db, "C-1", "Coffee", "21.90", 10)
	milk := createProduct(t, db, "M-1", "Milk", "9.90", 5)

	c := cart.New()
	if err := c.Add(coffee, 2); err != nil {
		t.Fatalf("Add coffee: %v", err)
	}
	if err := c.AddOne(milk); err != nil {
		t.Fatalf("Add milk: %v", err)
	}

	// A catalog price change after the item is in the cart must not affect the sale.
	in := models.ProductInput{Code: coffee.Code, Name: coffee.Name, SalePrice: decimal.RequireFromString("30.00"), Stock: 10, Unit: models.UnitPiece}
	if _, err := store.UpdateProduct(ctx, db, coffee.ID, in); err != nil {
		t.Fatalf("Update price: %v", err)
	}

	tendered := decimal.RequireFromString("60.00")
	recorder := checkout.NewRecorder(db, store.StockMayGoNegative)
	res, err := recorder.Checkout(ctx, checkout.Request{
		Lines:         c.Lines(),
		CustomerName:  "Ana",
		PaymentMethod: models.PaymentCash,
		Tendered:      &tendered,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if res.Total.StringFixed(2) != "53.70" {
		t.Errorf("Expected total 53.70, got %s", res.Total.StringFixed(2))
	}
	if res.Change.StringFixed(2) != "6.30" {
		t.Errorf("Expected change 6.30, got %s", res.Change.StringFixed(2))
	}
	if c.Len() != 2 {
		t.Errorf("Checkout must not modify the cart, has %d lines", c.Len())
	}

	sale, err := store.GetSale(ctx, db, res.SaleID)
	if err != nil {
		t.Fatalf("Get sale: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("53.70")) {
		t.Errorf("Persisted total %s", sale.Total)
	}
	if sale.Status != models.SaleStatusCompleted || sale.PaymentMethod != models.PaymentCash {
		t.Errorf("Unexpected sale header: %+v", sale)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(sale.Items))
	}
	if sale.Items[0].Subtotal.StringFixed(2) != "43.80" || sale.Items[1].Subtotal.StringFixed(2) != "9.90" {
		t.Errorf("Unexpected subtotals %s, %s", sale.Items[0].Subtotal, sale.Items[1].Subtotal)
	}

	if got := stockOf(t, db, coffee.ID); got != 8 {
		t.Errorf("Expected coffee stock 8, got %d", got)
	}
	if got := stockOf(t, db, milk.ID); got != 4 {
		t.Errorf("Expected milk stock 4, got %d", got)
	}
}

func TestCheckoutIsAtomic(t *testing.T) {
	db, cleanup := pgtest.Setup(t)
	defer cleanup()

	ctx := context.Background()
	a := createProduct(t, db, "A-1", "Apple", "1.50", 10)
	b := createProduct(t, db, "B-1", "Banana", "0.75", 10)

	lines := []cart.Line{
		{ProductID: a.ID, Name: a.Name, UnitPrice: a.SalePrice, Quantity: 3},
		{ProductID: b.ID, Name: b.Name, UnitPrice: b.SalePrice, Quantity: 4},
	}

	ledger := &failingLedger{SQLLedger: checkout.SQLLedger{Policy: store.StockMayGoNegative}, failAt: len(lines)}
	recorder := checkout.NewRecorderWithRunner(
		database.NewRunner(db, database.DefaultTxOptions()), ledger)

	_, err := recorder.Checkout(ctx, checkout.Request{Lines: lines, PaymentMethod: models.PaymentPIX})
	if !errors.Is(err, database.ErrTransactionFailed) {
		t.Fatalf("Expected transaction failed, got: %v", err)
	}

	if n := countRows(t, db, "sales"); n != 0 {
		t.Errorf("Expected no sales after rollback, got %d", n)
	}
	if n := countRows(t, db, "sale_items"); n != 0 {
		t.Errorf("Expected no sale items after rollback, got %d", n)
	}
	if got := stockOf(t, db, a.ID); got != 10 {
		t.Errorf("Stock of first product should be restored to 10, got %d", got)
	}
	if got := stockOf(t, db, b.ID); got != 10 {
		t.Errorf("Stock of second product should be 10, got %d", got)
	}
}

func TestCheckoutDeletedProduct(t *testing.T) {
	db, cleanup := pgtest.Setup(t)
	defer cleanup()

	ctx := context.Background()
	keep := createProduct(t, db, "K-1", "Keep", "2.00", 5)
	gone := createProduct(t, db, "G-1", "Gone", "3.00", 5)

	c := cart.New()
	_ = c.AddOne(keep)
	_ = c.AddOne(gone)

	if ok, err := store.DeleteProduct(ctx, db, gone.ID); err != nil || !ok {
		t.Fatalf("Delete product: ok=%v err=%v", ok, err)
	}

	recorder := checkout.NewRecorder(db, store.StockMayGoNegative)
	_, err := recorder.Checkout(ctx, checkout.Request{Lines: c.Lines(), PaymentMethod: models.PaymentDebitCard})
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Fatalf("Expected product not found, got: %v", err)
	}

	if n := countRows(t, db, "sales"); n != 0 {
		t.Errorf("Expected no sales, got %d", n)
	}
	if got := stockOf(t, db, keep.ID); got != 5 {
		t.Errorf("Expected stock unchanged at 5, got %d", got)
	}
}

func TestConcurrentCheckoutsDoNotLoseUpdates(t *testing.T) {
	db, cleanup := pgtest.Setup(t)
	defer cleanup()

	ctx := context.Background()
	product := createProduct(t, db, "CC-1", "Water", "2.00", 20)
	recorder := checkout.NewRecorder(db, store.StockMayGoNegative)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := recorder.Checkout(ctx, checkout.Request{
				Lines: []cart.Line{{
					ProductID: product.ID,
					Name:      product.Name,
					UnitPrice: product.SalePrice,
					Quantity:  3,
				}},
				PaymentMethod: models.PaymentPIX,
			})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Unexpected checkout error: %v", err)
		}
	}

	// Negative stock is allowed by policy; every unit sold must be accounted for.
	if got := stockOf(t, db, product.ID); got != 20-concurrency*3 {
		t.Errorf("Expected final stock %d, got %d", 20-concurrency*3, got)
	}
	if n := countRows(t, db, "sales"); n != concurrency {
		t.Errorf("Expected %d sales, got %d", concurrency, n)
	}
}

func TestCheckoutNonNegativePolicy(t *testing.T) {
	db, cleanup := pgtest.Setup(t)
	defer cleanup()

	ctx := context.Background()
	product := createProduct(t, db, "NN-1", "Eggs", "12.00", 2)
	recorder := checkout.NewRecorder(db, store.StockMustStayNonNegative)

	_, err := recorder.Checkout(ctx, checkout.Request{
		Lines:         []cart.Line{{ProductID: product.ID, Name: product.Name, UnitPrice: product.SalePrice, Quantity: 3}},
		PaymentMethod: models.PaymentCreditCard,
	})
	if !errors.Is(err, database.ErrTransactionFailed) || !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected transaction failed caused by insufficient stock, got: %v", err)
	}

	if got := stockOf(t, db, product.ID); got != 2 {
		t.Errorf("Expected stock unchanged at 2, got %d", got)
	}
	if n := countRows(t, db, "sales"); n != 0 {
		t.Errorf("Expected no sales, got %d", n)
	}
}
