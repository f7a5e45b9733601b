package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/metrics"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/service"
	"utilisoft/backend/internal/stats"
	"utilisoft/backend/internal/store/memory"
	"utilisoft/backend/internal/suggest"
)

type testAPI struct {
	*API
	repo *memory.Store
}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	repo := memory.NewSeeded()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	committer := sale.NewCommitter(repo)
	committer.OnCommit(func(_ context.Context, receipt domain.SaleReceipt) { m.ObserveReceipt(receipt) })
	sessions := sale.NewSessions(committer, sale.NewMemoryGuard(), time.Minute)
	svc := service.New(repo, sessions, suggest.NewEngine(repo, nil, 0), stats.NewAggregator(repo, nil, 0))
	svc.OnCheckout(m.ObserveCheckout)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return &testAPI{API: New(svc, auth, "*", m, reg), repo: repo}
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func (api *testAPI) do(t *testing.T, method, path, token, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", "", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/products", "", "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "salesman", "salesman123")

	rec := api.do(t, http.MethodGet, "/api/v1/products?q=electronics", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 2 {
		t.Fatalf("expected 2 electronics products, got %+v", body.Products)
	}
}

func TestGetProductNotFound(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "salesman", "salesman123")

	if rec := api.do(t, http.MethodGet, "/api/v1/products/999", token, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	csrf := fetchCSRFToken(t, api)
	req := map[string]any{"product_name": "Rice Flour", "price": "2.30", "category": "Groceries", "quantity": 4}

	salesman := loginAs(t, api, "salesman", "salesman123")
	if rec := api.do(t, http.MethodPost, "/api/v1/products", salesman, csrf, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for salesman, got %d", rec.Code)
	}

	admin := loginAs(t, api, "admin", "admin123")
	rec := api.do(t, http.MethodPost, "/api/v1/products", admin, csrf, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "salesman", "salesman123")
	csrf := fetchCSRFToken(t, api)

	for range 2 {
		rec := api.do(t, http.MethodPost, "/api/v1/cart/items", token, csrf, domain.CartAddRequest{ProductID: 1})
		if rec.Code != http.StatusOK {
			t.Fatalf("add to cart failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := api.do(t, http.MethodPost, "/api/v1/cart/checkout", token, csrf, domain.CheckoutRequest{IdempotencyKey: "till-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Receipt domain.SaleReceipt `json:"receipt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if len(body.Receipt.Records) != 1 || body.Receipt.Records[0].QuantitySold != 2 || body.Receipt.OperatorID != 2 {
		t.Fatalf("unexpected receipt %+v", body.Receipt)
	}

	view := api.do(t, http.MethodGet, "/api/v1/cart", token, "", nil)
	if !strings.Contains(view.Body.String(), `"lines":[]`) {
		t.Fatalf("expected empty cart after checkout, got %s", view.Body.String())
	}
	if p, _ := api.repo.FindProduct(context.Background(), 1); p.Quantity != 38 {
		t.Fatalf("expected stock 38, got %d", p.Quantity)
	}

	empty := api.do(t, http.MethodPost, "/api/v1/cart/checkout", token, csrf, nil)
	if empty.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d", empty.Code)
	}

	metricsRec := api.do(t, http.MethodGet, "/metrics", "", "", nil)
	if !strings.Contains(metricsRec.Body.String(), `utilisoft_checkouts_total{outcome="committed"} 1`) {
		t.Fatalf("expected committed checkout metric, got:\n%s", metricsRec.Body.String())
	}
}

func TestCheckoutInsufficientStockBody(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "salesman", "salesman123")
	csrf := fetchCSRFToken(t, api)

	if rec := api.do(t, http.MethodPost, "/api/v1/cart/items", token, csrf, domain.CartAddRequest{ProductID: 4}); rec.Code != http.StatusOK {
		t.Fatalf("add to cart failed: %d", rec.Code)
	}
	if err := api.repo.DecrementStock(context.Background(), 4, 18); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	rec := api.do(t, http.MethodPost, "/api/v1/cart/checkout", token, csrf, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["product_id"] != float64(4) || body["requested"] != float64(1) || body["available"] != float64(0) {
		t.Fatalf("unexpected conflict body %v", body)
	}

	view := api.do(t, http.MethodGet, "/api/v1/cart", token, "", nil)
	if !strings.Contains(view.Body.String(), `"product_id":4`) {
		t.Fatalf("expected cart to keep the line, got %s", view.Body.String())
	}
}

func TestCartLineErrors(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "salesman", "salesman123")
	csrf := fetchCSRFToken(t, api)

	if rec := api.do(t, http.MethodPost, "/api/v1/cart/items", token, csrf, domain.CartAddRequest{ProductID: 8}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for out of stock product, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, "/api/v1/cart/lines/3/increment", token, csrf, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown line, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodDelete, "/api/v1/cart/lines/0", token, csrf, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for removing unknown line, got %d", rec.Code)
	}
}

func TestDirectoryRoutes(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/debtors", admin, csrf, map[string]any{
		"name": "Ayesha Khan", "debt_amount": "120.50", "date_incurred": "2024-03-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create debtor failed: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Debtor domain.Debtor `json:"debtor"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode debtor: %v", err)
	}

	salesman := loginAs(t, api, "salesman", "salesman123")
	search := api.do(t, http.MethodGet, "/api/v1/debtors?q=ayesha", salesman, "", nil)
	if search.Code != http.StatusOK || !strings.Contains(search.Body.String(), "Ayesha Khan") {
		t.Fatalf("expected salesman to find debtor, got %d %s", search.Code, search.Body.String())
	}

	path := "/api/v1/debtors/" + strconv.FormatInt(created.Debtor.ID, 10)
	if rec := api.do(t, http.MethodDelete, path, salesman, csrf, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for salesman delete, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodDelete, path, admin, csrf, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodDelete, path, admin, csrf, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}

	stats := api.do(t, http.MethodGet, "/api/v1/stats", salesman, "", nil)
	if stats.Code != http.StatusOK || !strings.Contains(stats.Body.String(), `"total_stock":1046`) {
		t.Fatalf("unexpected stats response %d %s", stats.Code, stats.Body.String())
	}
}

func TestAdminCreatesSalesmanWhoCanLogIn(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	rec := api.do(t, http.MethodPost, "/api/v1/users", admin, csrf, domain.UserCreateRequest{Username: "bilal", Password: "till-pass"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user failed: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "$2") {
		t.Fatalf("expected password hash to stay out of the response")
	}
	loginAs(t, api, "bilal", "till-pass")
}
