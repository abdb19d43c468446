package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveResolution("subdomain", "store")
	m.ObserveResolution("subdomain", "store")
	m.ObserveConsumption("granted", "free")
	m.IncLedgerRetry()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.resolutions.WithLabelValues("subdomain", "store")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.consumptions.WithLabelValues("granted", "free")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ledgerRetries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveResolution("root", "root")
		m.ObserveConsumption("denied", "")
		m.ObserveWebhook("checkout.session.completed", "handled")
		m.IncLedgerRetry()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveWebhook("customer.subscription.deleted", "handled")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_webhook_events_total")
}
