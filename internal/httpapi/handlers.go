package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"utilisoft/backend/internal/cart"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/service"
	"utilisoft/backend/internal/store"
)

// statusFor maps service, cart and sale errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sale.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrStockLimitReached),
		errors.Is(err, sale.ErrInsufficientStock),
		errors.Is(err, sale.ErrCheckoutInProgress),
		errors.Is(err, sale.ErrDuplicateSubmission),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, sale.ErrEmptySale),
		errors.Is(err, sale.ErrInvalidQuantity),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, sale.ErrProductNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sale.ErrWriteFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var stockErr *sale.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, status, map[string]any{
			"error":      err.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}
	if errors.Is(err, sale.ErrWriteFailed) {
		// The cart is kept, so the operator can simply resubmit.
		logger.Logger.Error().Err(err).Msg("sale write failed")
		writeJSON(w, status, map[string]any{"error": "sale could not be recorded, try again"})
		return
	}
	writeError(w, status, err)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleSuggestProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.SuggestProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleViewCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ViewCart(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddToCart(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleIncrementLine(w http.ResponseWriter, r *http.Request) {
	a.handleLineAction(w, r, a.service.IncrementLine)
}

func (a *API) handleDecrementLine(w http.ResponseWriter, r *http.Request) {
	a.handleLineAction(w, r, a.service.DecrementLine)
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	a.handleLineAction(w, r, a.service.RemoveLine)
}

func (a *API) handleLineAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, index int) (domain.CartView, error)) {
	index, err := pathInt64(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := action(r.Context(), int(index))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ClearCart(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCheckout accepts an empty body as a checkout without an
// idempotency key.
func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if key := r.Header.Get("Idempotency-Key"); req.IdempotencyKey == "" && key != "" {
		req.IdempotencyKey = key
	}

	receipt, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"receipt": receipt})
}

func (a *API) handleSearchSales(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	sales, err := a.service.SearchSales(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
