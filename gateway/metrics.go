package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports supervisor activity to Prometheus.
//
// All methods are safe on a nil *Metrics, so the supervisor can run
// without a registry.
type Metrics struct {
	registry *prometheus.Registry

	// State is 1 for the current state and 0 for the others.
	// Labels: state
	State *prometheus.GaugeVec

	// Transitions counts state changes.
	// Labels: from, to
	Transitions *prometheus.CounterVec

	// Probes counts health probes.
	// Labels: result (healthy|unhealthy)
	Probes *prometheus.CounterVec

	// ProbeDuration measures probe latency in seconds.
	ProbeDuration prometheus.Histogram

	// Operations counts supervisor calls.
	// Labels: op (start|stop|restart|status), result (ok|error|coalesced)
	Operations *prometheus.CounterVec

	// Kills counts processes killed.
	// Labels: terminator
	Kills *prometheus.CounterVec

	// Launches counts gateway spawns.
	// Labels: result (ok|error)
	Launches *prometheus.CounterVec
}

// NewMetrics registers the supervisor metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "state",
			Help:      "Current supervisor state (1 for the active state).",
		}, []string{"state"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "transitions_total",
			Help:      "State transitions.",
		}, []string{"from", "to"}),
		Probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "probes_total",
			Help:      "Health probes by result.",
		}, []string{"result"}),
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "probe_duration_seconds",
			Help:      "Health probe latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "operations_total",
			Help:      "Supervisor operations by outcome.",
		}, []string{"op", "result"}),
		Kills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "processes_killed_total",
			Help:      "Processes killed during stop, by terminator.",
		}, []string{"terminator"}),
		Launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claw",
			Subsystem: "gateway",
			Name:      "launches_total",
			Help:      "Gateway spawn attempts.",
		}, []string{"result"}),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeState(from, to State) {
	if m == nil {
		return
	}
	for _, s := range AllStates() {
		v := 0.0
		if s == to {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
	if from != to {
		m.Transitions.WithLabelValues(from.String(), to.String()).Inc()
	}
}

func (m *Metrics) observeProbe(healthy bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	m.Probes.WithLabelValues(result).Inc()
	m.ProbeDuration.Observe(took.Seconds())
}

func (m *Metrics) observeOp(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) observeCoalesced(op string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, "coalesced").Inc()
}

func (m *Metrics) observeKills(terminator string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Kills.WithLabelValues(terminator).Add(float64(n))
}

func (m *Metrics) observeLaunch(err error) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
