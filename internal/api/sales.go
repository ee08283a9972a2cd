package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/receipt"
	"github.com/safar/go-pos-store/internal/session"
	"github.com/shopspring/decimal"
)

// listSales filters by ?from/?to when either is given and pages by ?cursor otherwise.
func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, ok := timeRange(w, r)
		if !ok {
			return
		}
		sales, err := s.catalog.ListSales(r.Context(), from, to)
		if err != nil {
			writeServiceError(w, err, "list sales")
			return
		}
		if sales == nil {
			sales = []models.Sale{}
		}
		writeJSON(w, http.StatusOK, sales)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	page, err := s.catalog.ListSalesCursor(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, err, "list sales")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "sale")
	if !ok {
		return
	}

	sale, err := s.catalog.GetSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get sale")
		return
	}

	writeJSON(w, http.StatusOK, sale)
}

// saleReceipt renders the receipt of a stored sale. Tendered and change are only known
// for the session's last sale.
func (s *Server) saleReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "sale")
	if !ok {
		return
	}

	sale, err := s.catalog.GetSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get sale")
		return
	}

	var tendered *decimal.Decimal
	if last := session.FromContext(r.Context()).LastSale; last != nil && last.SaleID == sale.ID {
		tendered = last.Tendered
	}

	doc, err := s.receipts.Render(receipt.InputFromSale(sale, tendered))
	if err != nil {
		writeServiceError(w, err, "render receipt")
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Disposition", "attachment; filename="+doc.Filename)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		log.Printf("Write receipt %d: %v", sale.ID, err)
	}
}
