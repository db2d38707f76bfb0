// Package metrics exposes the decision cycle counters on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"decision-maker/internal/types"
)

var (
	namespace = "decision"
	subsystem = "maker"

	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycles_total",
			Help:      "Total number of completed decision cycles",
		},
	)

	cycleTime = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cycle_duration_milliseconds",
			Help:      "Time taken by one decision cycle (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
	)

	slowCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slow_cycles_total",
			Help:      "Cycles that took longer than the configured period",
		},
	)

	missingContext = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "missing_context_total",
			Help:      "Cycles skipped because no state context was set",
		},
	)

	staleInputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_inputs_total",
			Help:      "Cycles that reused the previous perception snapshot",
		},
	)

	resubscriptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resubscriptions_total",
			Help:      "Inbound rebinds applied after a MAIN state change",
		},
	)

	resubscriptionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resubscription_failures_total",
			Help:      "Inbound rebinds rejected by the transport",
		},
	)

	publishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_failures_total",
			Help:      "Outbound records that failed to publish, by channel",
		},
		[]string{"channel"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Applied axis transitions",
		},
		[]string{"axis", "from", "to"},
	)

	currentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "axis_state",
			Help:      "1 for the current state of each axis, 0 otherwise",
		},
		[]string{"axis", "state"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds the /metrics HTTP server. The caller runs and stops it.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}
}

func ObserveCycle(duration, period time.Duration) {
	cyclesTotal.Inc()
	cycleTime.Observe(float64(duration.Microseconds()) / 1000.0)
	if duration > period {
		slowCycles.Inc()
	}
}

func IncMissingContext() {
	missingContext.Inc()
}

func IncStaleInput() {
	staleInputs.Inc()
}

func IncResubscription() {
	resubscriptions.Inc()
}

func IncResubscriptionFailure() {
	resubscriptionFailures.Inc()
}

func IncPublishFailure(channel string) {
	publishFailures.WithLabelValues(channel).Inc()
}

// ObserveTransition counts a transition and moves the state gauge. It has
// the fsm.Observer signature.
func ObserveTransition(kind types.AxisKind, from, to string) {
	axis := string(kind)
	transitions.WithLabelValues(axis, from, to).Inc()
	currentState.WithLabelValues(axis, from).Set(0)
	currentState.WithLabelValues(axis, to).Set(1)
}

// InitAxisState exports every declared state of an axis, with current at 1.
func InitAxisState(kind types.AxisKind, current string, declared []string) {
	axis := string(kind)
	for _, s := range declared {
		currentState.WithLabelValues(axis, s).Set(0)
	}
	currentState.WithLabelValues(axis, current).Set(1)
}
