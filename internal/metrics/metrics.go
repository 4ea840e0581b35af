// Package metrics exposes Prometheus collectors for the message pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "server_companion"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	xpAwards          *prometheus.CounterVec
	levelUps          prometheus.Counter
	roleGrants        *prometheus.CounterVec
	aiReplies         *prometheus.CounterVec
	stageFailures     *prometheus.CounterVec
	completionSeconds prometheus.Histogram
}

// MustNew registers all collectors on reg and panics on duplicate registration.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		xpAwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "xp",
			Name:      "awards_total",
			Help:      "XP award attempts by outcome.",
		}, []string{"result"}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "xp",
			Name:      "level_ups_total",
			Help:      "Level-up transitions detected after an award.",
		}),
		roleGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roles",
			Name:      "grants_total",
			Help:      "Reward role grant attempts by outcome.",
		}, []string{"result"}),
		aiReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "replies_total",
			Help:      "AI auto-reply decisions by outcome.",
		}, []string{"result"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Message pipeline stages that returned an error or panicked.",
		}, []string{"stage"}),
		completionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "completion_duration_seconds",
			Help:      "Latency of text completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
	reg.MustRegister(m.xpAwards, m.levelUps, m.roleGrants, m.aiReplies, m.stageFailures, m.completionSeconds)
	return m
}

func (m *Metrics) XPAward(result string) {
	if m == nil {
		return
	}
	m.xpAwards.WithLabelValues(result).Inc()
}

func (m *Metrics) LevelUp() {
	if m == nil {
		return
	}
	m.levelUps.Inc()
}

func (m *Metrics) RoleGrant(result string) {
	if m == nil {
		return
	}
	m.roleGrants.WithLabelValues(result).Inc()
}

func (m *Metrics) AIReply(result string) {
	if m == nil {
		return
	}
	m.aiReplies.WithLabelValues(result).Inc()
}

func (m *Metrics) StageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveCompletion(d time.Duration) {
	if m == nil {
		return
	}
	m.completionSeconds.Observe(d.Seconds())
}
