package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the orchestrator. A nil *Metrics records nothing.
type Metrics struct {
	commands  *prometheus.CounterVec
	duration  prometheus.Histogram
	reasoning *prometheus.CounterVec
	tools     *prometheus.CounterVec
	writes    *prometheus.CounterVec
}

// NewMetrics creates the orchestrator metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Subsystem: "agent",
			Name:      "commands_total",
			Help:      "Commands handled, by result type.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "folio",
			Subsystem: "agent",
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a command.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		reasoning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Subsystem: "agent",
			Name:      "reasoning_calls_total",
			Help:      "Calls to the reasoning service, by outcome.",
		}, []string{"outcome"}),
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Read tool executions, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Subsystem: "agent",
			Name:      "writes_total",
			Help:      "Confirmed writes, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.commands, m.duration, m.reasoning, m.tools, m.writes)
	return m
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

func (m *Metrics) command(result ResultType, start time.Time) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(string(result)).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) reasoned(err error) {
	if m == nil {
		return
	}
	m.reasoning.WithLabelValues(outcome(err != nil)).Inc()
}

func (m *Metrics) tool(name string, failed bool) {
	if m == nil {
		return
	}
	m.tools.WithLabelValues(name, outcome(failed)).Inc()
}

func (m *Metrics) write(kind string, err error) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind, outcome(err != nil)).Inc()
}
