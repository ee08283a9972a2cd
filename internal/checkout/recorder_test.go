package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBook is an in-memory ledger whose InTx stages writes and applies them only on success.
type memBook struct {
	stock  map[int64]int
	sales  []models.Sale
	items  []models.SaleItem
	nextID int64

	// staged state for the open transaction
	txStock map[int64]int
	txSales []models.Sale
	txItems []models.SaleItem

	begun     int
	committed int
	rolled    int

	failItemAt int // 1-based InsertSaleItem call that fails; 0 disables
	itemCalls  int
	failSale   error
	failLock   error
}

func newMemBook(stock map[int64]int) *memBook {
	return &memBook{stock: stock, nextID: 100}
}

func (b *memBook) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	b.begun++
	b.txStock = make(map[int64]int, len(b.stock))
	for id, qty := range b.stock {
		b.txStock[id] = qty
	}
	b.txSales, b.txItems, b.itemCalls = nil, nil, 0

	if err := fn(nil); err != nil {
		b.rolled++
		return err
	}

	b.stock = b.txStock
	b.sales = append(b.sales, b.txSales...)
	b.items = append(b.items, b.txItems...)
	b.committed++
	return nil
}

func (b *memBook) LockProduct(ctx context.Context, tx *sql.Tx, productID int64) error {
	if b.failLock != nil {
		return b.failLock
	}
	if _, ok := b.txStock[productID]; !ok {
		return database.ErrProductNotFound
	}
	return nil
}

func (b *memBook) InsertSale(ctx context.Context, tx *sql.Tx, sale *models.Sale) error {
	if b.failSale != nil {
		return b.failSale
	}
	b.nextID++
	sale.ID = b.nextID
	b.txSales = append(b.txSales, *sale)
	return nil
}

func (b *memBook) InsertSaleItem(ctx context.Context, tx *sql.Tx, item *models.SaleItem) error {
	b.itemCalls++
	if b.failItemAt == b.itemCalls {
		return errors.New("connection reset by peer")
	}
	b.nextID++
	item.ID = b.nextID
	b.txItems = append(b.txItems, *item)
	return nil
}

func (b *memBook) DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	b.txStock[productID] -= quantity
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func exampleLines() []cart.Line {
	return []cart.Line{
		{ProductID: 1, Name: "Coffee", UnitPrice: dec("21.90"), Quantity: 2},
		{ProductID: 2, Name: "Milk", UnitPrice: dec("9.90"), Quantity: 1},
	}
}

func TestCheckoutCashExample(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10, 2: 5})
	fixed := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	r := NewRecorderWithRunner(book, book, WithClock(func() time.Time { return fixed }))

	res, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		CustomerName:  "  Ana  ",
		PaymentMethod: models.PaymentCash,
		Tendered:      decPtr("60.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "53.70", res.Total.StringFixed(2))
	assert.Equal(t, "6.30", res.Change.StringFixed(2))
	assert.True(t, dec("6.30").Equal(res.Change))
	assert.NotZero(t, res.SaleID)

	require.Len(t, book.sales, 1)
	assert.Equal(t, res.SaleID, book.sales[0].ID)
	assert.Equal(t, "Ana", book.sales[0].CustomerName)
	assert.Equal(t, models.SaleStatusCompleted, book.sales[0].Status)
	assert.Equal(t, fixed, book.sales[0].CreatedAt)

	require.Len(t, book.items, 2)
	assert.Equal(t, "43.80", book.items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "9.90", book.items[1].Subtotal.StringFixed(2))
	for _, item := range book.items {
		assert.Equal(t, res.SaleID, item.SaleID)
	}

	assert.Equal(t, 8, book.stock[1])
	assert.Equal(t, 4, book.stock[2])
	assert.Equal(t, 1, book.committed)
}

func TestCheckoutEmptyCart(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10})
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{PaymentMethod: models.PaymentPIX})

	assert.ErrorIs(t, err, database.ErrEmptyCart)
	assert.Zero(t, book.begun, "no transaction may be opened for an empty cart")
	assert.Empty(t, book.sales)
}

func TestCheckoutCashTender(t *testing.T) {
	tests := []struct {
		name       string
		tendered   *decimal.Decimal
		wantErr    error
		wantChange string
	}{
		{name: "short", tendered: decPtr("53.69"), wantErr: database.ErrInsufficientTender},
		{name: "missing", tendered: nil, wantErr: database.ErrValidation},
		{name: "exact", tendered: decPtr("53.70"), wantChange: "0.00"},
		{name: "over", tendered: decPtr("100"), wantChange: "46.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newMemBook(map[int64]int{1: 10, 2: 5})
			r := NewRecorderWithRunner(book, book)

			res, err := r.Checkout(context.Background(), Request{
				Lines:         exampleLines(),
				PaymentMethod: models.PaymentCash,
				Tendered:      tt.tendered,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, database.ErrValidation)
				assert.Zero(t, book.begun)
				assert.Equal(t, 10, book.stock[1])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChange, res.Change.StringFixed(2))
		})
	}
}

func TestCheckoutNonCashIgnoresTender(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10, 2: 5})
	r := NewRecorderWithRunner(book, book)

	res, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		PaymentMethod: models.PaymentCreditCard,
		Tendered:      decPtr("1.00"),
	})
	require.NoError(t, err)

	assert.True(t, res.Change.IsZero())
	assert.Nil(t, res.Tendered)
}

func TestCheckoutUsesSnapshotPrices(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10})
	r := NewRecorderWithRunner(book, book)

	c := cart.New()
	coffee := &models.Product{ID: 1, Name: "Coffee", SalePrice: dec("21.90")}
	require.NoError(t, c.Add(coffee, 3))
	coffee.SalePrice = dec("99.99")

	res, err := r.Checkout(context.Background(), Request{
		Lines:         c.Lines(),
		PaymentMethod: models.PaymentDebitCard,
	})
	require.NoError(t, err)

	assert.Equal(t, "65.70", res.Total.StringFixed(2))
	assert.Equal(t, "21.90", book.items[0].UnitPrice.StringFixed(2))
}

func TestCheckoutRollsBackWhenLastItemFails(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10, 2: 5})
	book.failItemAt = 2
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		PaymentMethod: models.PaymentPIX,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrTransactionFailed)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, 1, book.rolled)
	assert.Zero(t, book.committed)
	assert.Empty(t, book.sales)
	assert.Empty(t, book.items)
	assert.Equal(t, 10, book.stock[1])
	assert.Equal(t, 5, book.stock[2])
}

func TestCheckoutHeaderFailureKeepsCause(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10, 2: 5})
	book.failSale = sql.ErrConnDone
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		PaymentMethod: models.PaymentPIX,
	})

	assert.ErrorIs(t, err, database.ErrTransactionFailed)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Empty(t, book.sales)
}

func TestCheckoutProductNotFoundAbortsSale(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10})
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		PaymentMethod: models.PaymentPIX,
	})

	assert.ErrorIs(t, err, database.ErrProductNotFound)
	assert.NotErrorIs(t, err, database.ErrTransactionFailed)
	assert.Empty(t, book.sales)
	assert.Equal(t, 10, book.stock[1])
}

func TestCheckoutValidatesLinesAndMethod(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10})
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{
		Lines:         []cart.Line{{ProductID: 1, UnitPrice: dec("1.00"), Quantity: 0}},
		PaymentMethod: models.PaymentPIX,
	})
	assert.ErrorIs(t, err, database.ErrValidation)

	_, err = r.Checkout(context.Background(), Request{
		Lines:         []cart.Line{{ProductID: 1, UnitPrice: dec("1.00"), Quantity: 1}},
		PaymentMethod: "Cheque",
	})
	assert.ErrorIs(t, err, database.ErrValidation)
	assert.Zero(t, book.begun)
}

func TestCheckoutRejectsOversizedText(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10})
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		CustomerName:  strings.Repeat("á", MaxCustomerNameLength+1),
		PaymentMethod: models.PaymentPIX,
	})
	require.ErrorIs(t, err, database.ErrValidation)
	assert.Contains(t, err.Error(), "customer name")

	_, err = r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		Notes:         strings.Repeat("n", MaxNotesLength+1),
		PaymentMethod: models.PaymentPIX,
	})
	require.ErrorIs(t, err, database.ErrValidation)
	assert.Zero(t, book.begun)

	book.stock[2] = 5
	_, err = r.Checkout(context.Background(), Request{
		Lines:         exampleLines(),
		CustomerName:  "  " + strings.Repeat("á", MaxCustomerNameLength) + "  ",
		PaymentMethod: models.PaymentPIX,
	})
	require.NoError(t, err, "the limit counts characters after trimming")
}

func TestCheckoutLockTimeoutKeepsCause(t *testing.T) {
	book := newMemBook(map[int64]int{1: 10, 2: 5})
	book.failLock = fmt.Errorf("%w: %w", database.ErrLockTimeout, &pq.Error{Code: "55P03"})
	r := NewRecorderWithRunner(book, book)

	_, err := r.Checkout(context.Background(), Request{Lines: exampleLines(), PaymentMethod: models.PaymentPIX})
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrTransactionFailed)
	assert.ErrorIs(t, err, database.ErrLockTimeout)
	assert.True(t, database.IsRetryable(err))
	assert.Equal(t, 1, book.rolled)
}

func TestLockOrder(t *testing.T) {
	lines := []cart.Line{{ProductID: 9}, {ProductID: 3}, {ProductID: 9}, {ProductID: 1}}
	assert.Equal(t, []int64{1, 3, 9}, lockOrder(lines))
}
