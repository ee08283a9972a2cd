package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-pos-store/internal/models"
)

func idParam(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid "+what+" id", nil)
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// timeParam accepts RFC 3339 timestamps or plain dates. A missing value is the zero time.
func timeParam(r *http.Request, key string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func timeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := timeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid from date", nil)
		return time.Time{}, time.Time{}, false
	}
	to, err := timeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid to date", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err, "list categories")
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}

	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	category, err := s.catalog.CreateCategory(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "create category")
		return
	}
	s.invalidate(r.Context())

	w.Header().Set("Location", "/categories/"+strconv.FormatInt(category.ID, 10))
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "category")
	if !ok {
		return
	}

	var req models.CategoryInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	category, err := s.catalog.UpdateCategory(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err, "update category")
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusOK, category)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "category")
	if !ok {
		return
	}

	deleted, err := s.catalog.DeleteCategory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "delete category")
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "in_use", "category is used by products", nil)
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusNoContent, nil)
}

// listProducts returns a page of all products, or every active product when ?active=true.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		products, err := s.catalog.ListActiveProducts(r.Context())
		if err != nil {
			writeServiceError(w, err, "list products")
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		writeJSON(w, http.StatusOK, products)
		return
	}

	page, pageSize := pageParams(r)
	result, err := s.catalog.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, err, "list products")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req models.ProductInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	product, err := s.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "create product")
		return
	}
	s.invalidate(r.Context())

	w.Header().Set("Location", "/products/"+strconv.FormatInt(product.ID, 10))
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	var req models.ProductInput
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	product, err := s.catalog.UpdateProduct(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err, "update product")
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) setProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	if err := s.catalog.SetProductActive(r.Context(), id, req.Active); err != nil {
		writeServiceError(w, err, "update product")
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	deleted, err := s.catalog.DeleteProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "delete product")
		return
	}
	if !deleted {
		writeError(w, http.StatusConflict, "in_use", "product has sales; deactivate it instead", nil)
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) lookupProduct(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "token is required", nil)
		return
	}

	product, err := s.catalog.FindByBarcodeOrCode(r.Context(), token)
	if err != nil {
		writeServiceError(w, err, "look up product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}
