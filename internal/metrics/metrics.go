package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

const (
	CheckoutResultSuccess      = "success"
	CheckoutResultValidation   = "validation"
	CheckoutResultForbidden    = "forbidden"
	CheckoutResultNotFound     = "variant_not_found"
	CheckoutResultInsufficient = "insufficient_stock"
	CheckoutResultConflict     = "conflict"
	CheckoutResultUnavailable  = "unavailable"
)

// Metrics 每個實例使用自己的 registry，測試可以重複建立
type Metrics struct {
	registry         *prometheus.Registry
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	Checkouts        *prometheus.CounterVec
	CheckoutDuration prometheus.Histogram
	StockWrites      prometheus.Counter
}

func New() *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_ms",
		Help:      "Checkout transaction latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	stockWrites := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_stock_writes_total",
		Help:      "Stock edits made outside checkout.",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(requests, latency, checkouts, checkoutDuration, stockWrites)
	return &Metrics{
		registry:         reg,
		Requests:         requests,
		LatencyMS:        latency,
		Checkouts:        checkouts,
		CheckoutDuration: checkoutDuration,
		StockWrites:      stockWrites,
	}
}

func (m *Metrics) ObserveCheckout(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	m.CheckoutDuration.Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) IncStockWrite() {
	if m == nil {
		return
	}
	m.StockWrites.Inc()
}

func (m *Metrics) ObserveRequest(route string, status string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
