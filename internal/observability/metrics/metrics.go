package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	resolutions   *prometheus.CounterVec
	consumptions  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	ledgerRetries prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_tenant_resolutions_total",
			Help: "Tenant resolutions by signal used and outcome.",
		}, []string{"resolved_via", "outcome"}),
		consumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_credit_consumptions_total",
			Help: "Credit consumption attempts by result and pool.",
		}, []string{"result", "pool"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		ledgerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_ledger_write_retries_total",
			Help: "Ledger writes retried after a transport failure.",
		}),
	}
	registry.MustRegister(
		m.resolutions,
		m.consumptions,
		m.webhookEvents,
		m.ledgerRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveResolution(via, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(via, outcome).Inc()
}

func (m *Metrics) ObserveConsumption(result, pool string) {
	if m == nil {
		return
	}
	m.consumptions.WithLabelValues(result, pool).Inc()
}

func (m *Metrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncLedgerRetry() {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc()
}
