package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/metrics"
	"utilisoft/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

// New wires the HTTP surface. m and gatherer may be nil, in which case no
// request metrics are recorded and /metrics is not served.
func New(svc *service.Service, auth *AuthManager, allowedOrigin string, m *metrics.Metrics, gatherer prometheus.Gatherer) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		metrics:       m,
		gatherer:      gatherer,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}

	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/login", a.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/auth/csrf-token", a.handleCSRFToken).Methods(http.MethodGet)

	anyRole := []string{domain.RoleSalesman, domain.RoleAdmin}
	adminOnly := []string{domain.RoleAdmin}

	v1.HandleFunc("/products", a.requireAuth(a.handleSearchProducts, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/products", a.requireAuth(a.handleCreateProduct, adminOnly...)).Methods(http.MethodPost)
	v1.HandleFunc("/products/suggest", a.requireAuth(a.handleSuggestProducts, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id:[0-9]+}", a.requireAuth(a.handleGetProduct, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id:[0-9]+}", a.requireAuth(a.handleDeleteProduct, adminOnly...)).Methods(http.MethodDelete)

	v1.HandleFunc("/cart", a.requireAuth(a.handleViewCart, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/cart", a.requireAuth(a.handleClearCart, anyRole...)).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/items", a.requireAuth(a.handleAddToCart, anyRole...)).Methods(http.MethodPost)
	v1.HandleFunc("/cart/lines/{index:[0-9]+}/increment", a.requireAuth(a.handleIncrementLine, anyRole...)).Methods(http.MethodPost)
	v1.HandleFunc("/cart/lines/{index:[0-9]+}/decrement", a.requireAuth(a.handleDecrementLine, anyRole...)).Methods(http.MethodPost)
	v1.HandleFunc("/cart/lines/{index:[0-9]+}", a.requireAuth(a.handleRemoveLine, anyRole...)).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/checkout", a.requireAuth(a.handleCheckout, anyRole...)).Methods(http.MethodPost)

	v1.HandleFunc("/sales", a.requireAuth(a.handleSearchSales, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/stats", a.requireAuth(a.handleStats, anyRole...)).Methods(http.MethodGet)

	v1.HandleFunc("/debtors", a.requireAuth(a.handleSearchDebtors, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/debtors", a.requireAuth(a.handleCreateDebtor, adminOnly...)).Methods(http.MethodPost)
	v1.HandleFunc("/debtors/{id:[0-9]+}", a.requireAuth(a.handleDeleteDebtor, adminOnly...)).Methods(http.MethodDelete)
	v1.HandleFunc("/vendors", a.requireAuth(a.handleSearchVendors, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/vendors", a.requireAuth(a.handleCreateVendor, adminOnly...)).Methods(http.MethodPost)
	v1.HandleFunc("/vendors/{id:[0-9]+}", a.requireAuth(a.handleDeleteVendor, adminOnly...)).Methods(http.MethodDelete)
	v1.HandleFunc("/workers", a.requireAuth(a.handleSearchWorkers, anyRole...)).Methods(http.MethodGet)
	v1.HandleFunc("/workers", a.requireAuth(a.handleCreateWorker, adminOnly...)).Methods(http.MethodPost)
	v1.HandleFunc("/workers/{id:[0-9]+}", a.requireAuth(a.handleDeleteWorker, adminOnly...)).Methods(http.MethodDelete)

	v1.HandleFunc("/users", a.requireAuth(a.handleListUsers, adminOnly...)).Methods(http.MethodGet)
	v1.HandleFunc("/users", a.requireAuth(a.handleCreateUser, adminOnly...)).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-CSRF-Token", "Idempotency-Key"},
		MaxAge:         600,
	})
	return c.Handler(a.withMiddleware(r))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before the client could have fetched a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info(r.Context()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("duration", time.Since(startedAt)).
			Msg("request handled")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func pathInt64(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError returns the error text for 4xx responses. 5xx responses get a
// generic message and the cause is logged instead.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		logger.Logger.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
