// Package metrics exposes the domain counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadence/academy/core"
)

// Prometheus implements core.Metrics on its own registry.
type Prometheus struct {
	registry      *prometheus.Registry
	attempts      *prometheus.CounterVec
	unlocks       *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var _ core.Metrics = (*Prometheus)(nil) // interface compliance check

func NewPrometheus(conf *core.Config) *Prometheus {
	constLabels := prometheus.Labels{"env": conf.Env}
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "academy",
			Name:        "assessment_attempts_total",
			Help:        "Graded assessment attempts.",
			ConstLabels: constLabels,
		}, []string{"unit_kind", "passed"}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "academy",
			Name:        "unlock_decisions_total",
			Help:        "Unlock evaluations by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "academy",
			Name:        "notifications_total",
			Help:        "Notification emails by template and outcome.",
			ConstLabels: constLabels,
		}, []string{"template", "ok"}),
	}
	m.registry.MustRegister(
		m.attempts,
		m.unlocks,
		m.notifications,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Prometheus) AttemptGraded(unitKind string, passed bool) {
	m.attempts.WithLabelValues(unitKind, strconv.FormatBool(passed)).Inc()
}

func (m *Prometheus) UnlockDecided(reason string) {
	m.unlocks.WithLabelValues(reason).Inc()
}

func (m *Prometheus) NotificationSent(template string, ok bool) {
	m.notifications.WithLabelValues(template, strconv.FormatBool(ok)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
