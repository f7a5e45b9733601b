// Package metrics holds the Prometheus collectors for sales and HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/sale"
)

type Metrics struct {
	requestCounter  *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	checkoutCounter *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	linesSold       prometheus.Counter
	revenue         prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "utilisoft_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "utilisoft_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		checkoutCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "utilisoft_checkouts_total",
				Help: "Checkouts by outcome",
			},
			[]string{"outcome"},
		),
		checkoutLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "utilisoft_checkout_duration_seconds",
				Help:    "Duration of checkouts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		linesSold: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "utilisoft_sale_lines_total",
				Help: "Ledger rows written by committed sales",
			},
		),
		revenue: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "utilisoft_sale_revenue_total",
				Help: "Sum of committed sale totals",
			},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestLatency,
		m.checkoutCounter,
		m.checkoutLatency,
		m.linesSold,
		m.revenue,
	)
	return m
}

// Outcome names the checkout result for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, sale.ErrEmptySale):
		return "empty"
	case errors.Is(err, sale.ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, sale.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, sale.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, sale.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, sale.ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, sale.ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, sale.ErrWriteFailed):
		return "write_failed"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveCheckout(err error, took time.Duration) {
	m.checkoutCounter.WithLabelValues(Outcome(err)).Inc()
	m.checkoutLatency.Observe(took.Seconds())
}

// ObserveReceipt counts what a committed sale wrote.
func (m *Metrics) ObserveReceipt(receipt domain.SaleReceipt) {
	m.linesSold.Add(float64(len(receipt.Records)))
	m.revenue.Add(receipt.TotalAmount.Round(2).InexactFloat64())
}

// Middleware records count and latency per route template so path ids do
// not blow up label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.requestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
