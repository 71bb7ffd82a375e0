// Package metrics holds the Prometheus collectors for the auth server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lborres/starterp/core"
)

type Metrics struct {
	registry *prometheus.Registry

	authOutcomes *prometheus.CounterVec
	signIns      *prometheus.CounterVec
	roleChanges  *prometheus.CounterVec
	rateLimited  prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starterp_auth_strategy_outcomes_total",
				Help: "Authentication strategy outcomes.",
			},
			[]string{"strategy", "outcome"},
		),
		signIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starterp_sign_ins_total",
				Help: "Sign-in and sign-up attempts by method and result.",
			},
			[]string{"method", "result"},
		),
		roleChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starterp_role_changes_total",
				Help: "Role assignments and removals.",
			},
			[]string{"event"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starterp_rate_limited_requests_total",
			Help: "Requests refused by the per-IP rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.authOutcomes,
		m.signIns,
		m.roleChanges,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome has the shape of services.OutcomeObserver.
func (m *Metrics) ObserveOutcome(strategy string, kind core.OutcomeKind) {
	m.authOutcomes.WithLabelValues(strategy, kind.String()).Inc()
}

// SignIn counts an attempt; result is "success" or "failure".
func (m *Metrics) SignIn(method string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.signIns.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RoleChange(event string) {
	m.roleChanges.WithLabelValues(event).Inc()
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
