// Package checkout turns a cart into a persisted sale and applies the matching stock
// decrements as one unit of work.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/store"
	"github.com/shopspring/decimal"
)

type Request struct {
	Lines         []cart.Line
	CustomerName  string
	PaymentMethod models.PaymentMethod
	// Tendered is the cash handed over. Only read for cash payments.
	Tendered *decimal.Decimal
	Notes    string
}

type Result struct {
	SaleID   int64            `json:"sale_id"`
	Sale     *models.Sale     `json:"sale"`
	Total    decimal.Decimal  `json:"total"`
	Tendered *decimal.Decimal `json:"tendered,omitempty"`
	Change   decimal.Decimal  `json:"change"`
}

// Ledger is the set of writes a checkout performs inside its transaction.
type Ledger interface {
	LockProduct(ctx context.Context, tx *sql.Tx, productID int64) error
	InsertSale(ctx context.Context, tx *sql.Tx, sale *models.Sale) error
	InsertSaleItem(ctx context.Context, tx *sql.Tx, item *models.SaleItem) error
	DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error
}

// SQLLedger writes through the store package.
type SQLLedger struct {
	Policy store.StockPolicy
}

func (l SQLLedger) LockProduct(ctx context.Context, tx *sql.Tx, productID int64) error {
	_, err := store.LockProduct(ctx, tx, productID)
	return err
}

func (l SQLLedger) InsertSale(ctx context.Context, tx *sql.Tx, sale *models.Sale) error {
	return store.InsertSale(ctx, tx, sale)
}

func (l SQLLedger) InsertSaleItem(ctx context.Context, tx *sql.Tx, item *models.SaleItem) error {
	return store.InsertSaleItem(ctx, tx, item)
}

func (l SQLLedger) DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	return store.DecrementStock(ctx, tx, productID, quantity, l.Policy)
}

type Recorder struct {
	tx     database.TxRunner
	ledger Ledger
	now    func() time.Time
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithLedger(ledger Ledger) Option {
	return func(r *Recorder) { r.ledger = ledger }
}

// NewRecorder builds a Recorder that runs each checkout in a read-committed transaction.
func NewRecorder(db *sql.DB, policy store.StockPolicy, opts ...Option) *Recorder {
	return NewRecorderWithRunner(database.NewRunner(db, database.DefaultTxOptions()), SQLLedger{Policy: policy}, opts...)
}

func NewRecorderWithRunner(runner database.TxRunner, ledger Ledger, opts ...Option) *Recorder {
	r := &Recorder{
		tx:     runner,
		ledger: ledger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Checkout persists the sale described by req. Totals come from the snapshot prices on
// the lines. On any write failure nothing from this call remains: the error then matches
// database.ErrTransactionFailed and wraps the cause. The cart is never modified here.
func (r *Recorder) Checkout(ctx context.Context, req Request) (*Result, error) {
	if len(req.Lines) == 0 {
		return nil, database.ErrEmptyCart
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	total := cart.Total(req.Lines)

	change := decimal.Zero
	var tendered *decimal.Decimal
	if req.PaymentMethod == models.PaymentCash {
		if req.Tendered == nil {
			return nil, fmt.Errorf("%w: tendered amount is required for cash payments", database.ErrValidation)
		}
		if req.Tendered.LessThan(total) {
			return nil, fmt.Errorf("%w: tendered %s, total %s",
				database.ErrInsufficientTender, req.Tendered.StringFixed(2), total.StringFixed(2))
		}
		t := *req.Tendered
		tendered = &t
		change = t.Sub(total)
	}

	sale := &models.Sale{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Status:        models.SaleStatusCompleted,
		CreatedAt:     r.now(),
		Notes:         strings.TrimSpace(req.Notes),
	}

	err := r.tx.InTx(ctx, func(tx *sql.Tx) error {
		sale.Items = nil

		for _, id := range lockOrder(req.Lines) {
			if err := r.ledger.LockProduct(ctx, tx, id); err != nil {
				if errors.Is(err, database.ErrProductNotFound) {
					return fmt.Errorf("%w: id %d", database.ErrProductNotFound, id)
				}
				return err
			}
		}

		if err := r.ledger.InsertSale(ctx, tx, sale); err != nil {
			return err
		}

		for _, line := range req.Lines {
			item := models.SaleItem{
				SaleID:      sale.ID,
				ProductID:   line.ProductID,
				ProductName: line.Name,
				ProductCode: line.Code,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				Subtotal:    line.Subtotal(),
			}
			if err := r.ledger.InsertSaleItem(ctx, tx, &item); err != nil {
				return err
			}
			if err := r.ledger.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", line.ProductID, err)
			}
			sale.Items = append(sale.Items, item)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", database.ErrTransactionFailed, err)
	}

	return &Result{
		SaleID:   sale.ID,
		Sale:     sale,
		Total:    total,
		Tendered: tendered,
		Change:   change,
	}, nil
}

// Column limits of sales.customer_name and the notes cap.
const (
	MaxCustomerNameLength = 200
	MaxNotesLength        = 1000
)

func validate(req Request) error {
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", database.ErrValidation, req.PaymentMethod)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.CustomerName)) > MaxCustomerNameLength {
		return fmt.Errorf("%w: customer name must be at most %d characters", database.ErrValidation, MaxCustomerNameLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Notes)) > MaxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", database.ErrValidation, MaxNotesLength)
	}
	for i, line := range req.Lines {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be at least 1", database.ErrValidation, i)
		}
		if !line.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: line %d unit price must be greater than 0", database.ErrValidation, i)
		}
	}
	return nil
}

// lockOrder returns the distinct product ids in ascending order so concurrent checkouts
// acquire row locks in the same sequence.
func lockOrder(lines []cart.Line) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
