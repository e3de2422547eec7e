package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCheckout(t *testing.T) {
	m := New()
	m.ObserveCheckout(CheckoutResultSuccess, time.Now())
	m.ObserveCheckout(CheckoutResultSuccess, time.Now())
	m.ObserveCheckout(CheckoutResultInsufficient, time.Now())

	require.Equal(t, float64(2), testutil.ToFloat64(m.Checkouts.WithLabelValues(CheckoutResultSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Checkouts.WithLabelValues(CheckoutResultInsufficient)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheckout(CheckoutResultSuccess, time.Now())
	m.ObserveRequest("/", "200", time.Now())
	m.IncStockWrite()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/v1/cart", "200", time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "storefront_http_requests_total"))
}
