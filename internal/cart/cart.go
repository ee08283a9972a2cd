// Package cart holds the in-memory list of prospective purchase lines for one session.
package cart

import (
	"errors"
	"fmt"

	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", database.ErrValidation)
	ErrLineNotFound    = errors.New("cart line not found")
)

// Line is one product in the cart. Name and UnitPrice are captured when the product is
// added and are not refreshed from the catalog afterwards.
type Line struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Code      string          `json:"code,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is owned by a single session and is not safe for concurrent use.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// Add puts quantity units of product into the cart. A product already in the cart has its
// line quantity increased; its snapshot price is kept.
func (c *Cart) Add(product *models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			c.lines[i].Quantity += quantity
			return nil
		}
	}

	c.lines = append(c.lines, Line{
		ProductID: product.ID,
		Name:      product.Name,
		Code:      displayCode(product),
		UnitPrice: product.SalePrice,
		Quantity:  quantity,
	})
	return nil
}

func (c *Cart) AddOne(product *models.Product) error {
	return c.Add(product, 1)
}

func (c *Cart) UpdateQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.lines[index].Quantity = quantity
	return nil
}

func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}

	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Total is recomputed from the lines on every call.
func (c *Cart) Total() decimal.Decimal {
	return Total(c.lines)
}

func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func displayCode(product *models.Product) string {
	if product.Barcode != nil {
		return *product.Barcode
	}
	if product.Code != nil {
		return *product.Code
	}
	return ""
}
