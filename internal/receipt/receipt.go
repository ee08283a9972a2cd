// Package receipt renders a completed sale as a standalone HTML document.
package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/shopspring/decimal"
)

const (
	ContentType = "text/html; charset=utf-8"

	unidentifiedCustomer = "Unidentified customer"
	missingCode          = "N/A"
	dateLayout           = "02/01/2006 15:04:05"
)

type Input struct {
	SaleID        int64
	Lines         []cart.Line
	CustomerName  string
	PaymentMethod models.PaymentMethod
	Total         decimal.Decimal
	// Tendered is shown with the change only for cash payments.
	Tendered *decimal.Decimal
}

type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// DataURI encodes the document for an inline download link.
func (d *Document) DataURI() string {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString(d.Body)
}

// DownloadLink returns an anchor that saves the document under its filename.
func (d *Document) DownloadLink(label string) template.HTML {
	return template.HTML(fmt.Sprintf(`<a href="%s" download="%s">%s</a>`,
		d.DataURI(), template.HTMLEscapeString(d.Filename), template.HTMLEscapeString(label)))
}

type Renderer struct {
	StoreName string
	Currency  string
	now       func() time.Time
}

func NewRenderer(storeName, currency string) *Renderer {
	return &Renderer{
		StoreName: storeName,
		Currency:  currency,
		now:       time.Now,
	}
}

// WithClock replaces the timestamp source.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

type lineView struct {
	Name      string
	Code      string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

type view struct {
	StoreName     string
	SaleID        int64
	GeneratedAt   string
	Customer      string
	PaymentMethod string
	Lines         []lineView
	Total         string
	Tendered      string
	Change        string
	ShowChange    bool
}

func (r *Renderer) Render(in Input) (*Document, error) {
	v := view{
		StoreName:     r.StoreName,
		SaleID:        in.SaleID,
		GeneratedAt:   r.now().Format(dateLayout),
		Customer:      strings.TrimSpace(in.CustomerName),
		PaymentMethod: string(in.PaymentMethod),
		Total:         r.money(in.Total),
	}
	if v.Customer == "" {
		v.Customer = unidentifiedCustomer
	}

	for _, line := range in.Lines {
		code := line.Code
		if code == "" {
			code = missingCode
		}
		v.Lines = append(v.Lines, lineView{
			Name:      line.Name,
			Code:      code,
			Quantity:  line.Quantity,
			UnitPrice: r.money(line.UnitPrice),
			Subtotal:  r.money(line.Subtotal()),
		})
	}

	if in.PaymentMethod == models.PaymentCash && in.Tendered != nil {
		v.ShowChange = true
		v.Tendered = r.money(*in.Tendered)
		v.Change = r.money(in.Tendered.Sub(in.Total))
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render receipt %d: %w", in.SaleID, err)
	}

	return &Document{
		Filename:    fmt.Sprintf("receipt_%d.html", in.SaleID),
		ContentType: ContentType,
		Body:        buf.Bytes(),
	}, nil
}

// InputFromSale builds the render input for a persisted sale.
func InputFromSale(sale *models.Sale, tendered *decimal.Decimal) Input {
	lines := make([]cart.Line, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, cart.Line{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Code:      item.ProductCode,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	return Input{
		SaleID:        sale.ID,
		Lines:         lines,
		CustomerName:  sale.CustomerName,
		PaymentMethod: sale.PaymentMethod,
		Total:         sale.Total,
		Tendered:      tendered,
	}
}

func (r *Renderer) money(d decimal.Decimal) string {
	return r.Currency + " " + d.StringFixed(2)
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Receipt #{{.SaleID}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
.receipt { max-width: 800px; margin: 0 auto; border: 1px solid #ddd; padding: 20px; }
.header { text-align: center; margin-bottom: 20px; border-bottom: 2px solid #333; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 10px; text-align: left; }
.total { text-align: right; font-weight: bold; margin-top: 20px; }
.footer { text-align: center; margin-top: 30px; font-size: 12px; color: #777; }
</style>
</head>
<body>
<div class="receipt">
  <div class="header">
    <h1>{{.StoreName}}</h1>
    <h2>Sale Receipt #{{.SaleID}}</h2>
    <p>Date: {{.GeneratedAt}}</p>
    <p>Customer: {{.Customer}}</p>
    <p>Payment Method: {{.PaymentMethod}}</p>
  </div>
  <table>
    <thead>
      <tr><th>Product</th><th>Code</th><th>Qty</th><th>Unit Price</th><th>Subtotal</th></tr>
    </thead>
    <tbody>
{{- range .Lines}}
      <tr><td>{{.Name}}</td><td>{{.Code}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Subtotal}}</td></tr>
{{- end}}
    </tbody>
  </table>
  <div class="total">
    <p>Total: {{.Total}}</p>
{{- if .ShowChange}}
    <p>Tendered: {{.Tendered}}</p>
    <p>Change: {{.Change}}</p>
{{- end}}
  </div>
  <div class="footer">
    <p>Thank you for your purchase!</p>
  </div>
</div>
</body>
</html>
`))
