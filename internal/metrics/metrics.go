// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for provisioning and reconciliation.
type Metrics struct {
	registry *prometheus.Registry

	ProvisionTotal   *prometheus.CounterVec
	DeprovisionTotal *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	OrphanAccounts   prometheus.Gauge
	OrphanProfiles   prometheus.Gauge
}

// New creates and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ProvisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_provision_total",
			Help: "Account provisioning attempts by outcome.",
		}, []string{"outcome"}),
		DeprovisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_deprovision_total",
			Help: "Account deprovisioning attempts by outcome.",
		}, []string{"outcome"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinicore_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		OrphanAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinicore_reconciler_orphan_accounts",
			Help: "Identity-provider accounts with no profile document, as of the last reconciliation pass.",
		}),
		OrphanProfiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinicore_reconciler_orphan_profiles",
			Help: "Profile documents with no identity-provider account, as of the last reconciliation pass.",
		}),
	}

	registry.MustRegister(
		m.ProvisionTotal,
		m.DeprovisionTotal,
		m.RequestsInFlight,
		m.OrphanAccounts,
		m.OrphanProfiles,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
