package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"github.com/safar/go-pos-store/internal/receipt"
	"github.com/safar/go-pos-store/internal/session"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	Lines []cart.Line     `json:"lines"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func cartView(c *cart.Cart) cartResponse {
	return cartResponse{
		Lines: c.Lines(),
		Count: c.Len(),
		Total: c.Total(),
	}
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index", "invalid cart line index", nil)
		return 0, false
	}
	return index, true
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.Cart.Clear()
	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := s.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeServiceError(w, err, "add to cart")
		return
	}
	if !product.Active {
		writeServiceError(w, database.ErrProductNotFound, "add to cart")
		return
	}

	sess := session.FromContext(r.Context())
	if err := sess.Cart.Add(product, req.Quantity); err != nil {
		writeServiceError(w, err, "add to cart")
		return
	}

	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

// scanCartItem adds one unit of the product matching a scanned or typed code.
func (s *Server) scanCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	sess := session.FromContext(r.Context())
	product, err := s.scanner.Submit(r.Context(), req.Token, sess.Scans)
	if err != nil {
		writeServiceError(w, err, "scan product")
		return
	}

	if err := sess.Cart.AddOne(product); err != nil {
		writeServiceError(w, err, "add to cart")
		return
	}

	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	sess := session.FromContext(r.Context())
	if err := sess.Cart.UpdateQuantity(index, req.Quantity); err != nil {
		writeServiceError(w, err, "update cart")
		return
	}

	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}

	sess := session.FromContext(r.Context())
	if err := sess.Cart.Remove(index); err != nil {
		writeServiceError(w, err, "update cart")
		return
	}

	writeJSON(w, http.StatusOK, cartView(sess.Cart))
}

type receiptLink struct {
	Filename string `json:"filename"`
	DataURI  string `json:"data_uri"`
	Link     string `json:"link"`
}

type checkoutResponse struct {
	*checkout.Result
	Receipt *receiptLink `json:"receipt,omitempty"`
}

// recordSale checks out the session's cart. The cart is cleared only when the sale is saved.
func (s *Server) recordSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName  string               `json:"customer_name"`
		PaymentMethod models.PaymentMethod `json:"payment_method"`
		Tendered      *decimal.Decimal     `json:"tendered"`
		Notes         string               `json:"notes"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	sess := session.FromContext(r.Context())
	result, err := s.checkout.Checkout(r.Context(), checkout.Request{
		Lines:         sess.Cart.Lines(),
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
		Tendered:      req.Tendered,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, err, "record sale")
		return
	}

	lines := sess.Cart.Lines()
	sess.Cart.Clear()
	sess.LastSale = result
	s.invalidate(r.Context())

	resp := checkoutResponse{Result: result}
	doc, err := s.receipts.Render(receipt.Input{
		SaleID:        result.SaleID,
		Lines:         lines,
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
		Total:         result.Total,
		Tendered:      result.Tendered,
	})
	if err != nil {
		log.Printf("Render receipt for sale %d: %v", result.SaleID, err)
	} else {
		resp.Receipt = &receiptLink{
			Filename: doc.Filename,
			DataURI:  doc.DataURI(),
			Link:     string(doc.DownloadLink("Download receipt")),
		}
	}

	w.Header().Set("Location", "/sales/"+strconv.FormatInt(result.SaleID, 10))
	writeJSON(w, http.StatusCreated, resp)
}

type sessionResponse struct {
	ID             string `json:"id"`
	CartLines      int    `json:"cart_lines"`
	EditProductID  *int64 `json:"edit_product_id,omitempty"`
	EditCategoryID *int64 `json:"edit_category_id,omitempty"`
	LastSaleID     *int64 `json:"last_sale_id,omitempty"`
}

func sessionView(sess *session.Session) sessionResponse {
	resp := sessionResponse{
		ID:             sess.ID.String(),
		CartLines:      sess.Cart.Len(),
		EditProductID:  sess.EditProductID,
		EditCategoryID: sess.EditCategoryID,
	}
	if sess.LastSale != nil {
		id := sess.LastSale.SaleID
		resp.LastSaleID = &id
	}
	return resp
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView(session.FromContext(r.Context())))
}

// setEditTarget records which product or category the operator is editing.
func (s *Server) setEditTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID  *int64 `json:"product_id"`
		CategoryID *int64 `json:"category_id"`
	}
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	sess := session.FromContext(r.Context())
	if req.ProductID != nil {
		if _, err := s.catalog.GetProduct(r.Context(), *req.ProductID); err != nil {
			writeServiceError(w, err, "start editing")
			return
		}
	}
	sess.EditProductID = req.ProductID
	sess.EditCategoryID = req.CategoryID

	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) clearEditTarget(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.EditProductID = nil
	sess.EditCategoryID = nil

	writeJSON(w, http.StatusOK, sessionView(sess))
}
