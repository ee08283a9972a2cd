package api

import (
	"bytes"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/report"
)

func (s *Server) reportSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}

	summary, err := s.reports.Summary(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err, "build sales summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) reportTopProducts(w http.ResponseWriter, r *http.Request) {
	since, err := timeParam(r, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid since date", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	top, err := s.reports.TopProducts(r.Context(), since, limit)
	if err != nil {
		writeServiceError(w, err, "build top products")
		return
	}
	if top == nil {
		top = []report.ProductSales{}
	}

	writeJSON(w, http.StatusOK, top)
}

func (s *Server) reportDaily(w http.ResponseWriter, r *http.Request) {
	since, err := timeParam(r, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid since date", nil)
		return
	}

	days, err := s.reports.DailyTotals(r.Context(), since)
	if err != nil {
		writeServiceError(w, err, "build daily totals")
		return
	}
	if days == nil {
		days = []report.DailyTotal{}
	}

	writeJSON(w, http.StatusOK, days)
}

func (s *Server) reportPayments(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}

	totals, err := s.reports.ByPaymentMethod(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err, "build payment totals")
		return
	}
	if totals == nil {
		totals = []report.PaymentTotal{}
	}

	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) reportLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := s.reports.LowStock(r.Context())
	if err != nil {
		writeServiceError(w, err, "list low stock")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	writeJSON(w, http.StatusOK, products)
}

func (s *Server) reportInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.reports.InventoryValue(r.Context())
	if err != nil {
		writeServiceError(w, err, "build inventory value")
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) reportCategories(w http.ResponseWriter, r *http.Request) {
	byCategory, err := s.reports.StockValueByCategory(r.Context())
	if err != nil {
		writeServiceError(w, err, "build stock by category")
		return
	}
	if byCategory == nil {
		byCategory = []report.CategoryStock{}
	}

	writeJSON(w, http.StatusOK, byCategory)
}

func (s *Server) exportSales(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "export is not configured", nil)
		return
	}

	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.ExportSalesXLSX(r.Context(), &buf, from, to); err != nil {
		writeServiceError(w, err, "export sales")
		return
	}

	filename := "sales_" + time.Now().Format("20060102_150405") + ".xlsx"
	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Write export: %v", err)
	}
}
