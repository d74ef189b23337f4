package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the workshop collectors. A nil *Metrics records nothing.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	StockMovements  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workshop",
				Name:      "commands_total",
				Help:      "Work-order commands by outcome.",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "workshop",
				Name:      "command_duration_seconds",
				Help:      "Duration of work-order commands in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		StockMovements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workshop",
				Name:      "stock_movements_total",
				Help:      "Inventory movements written, by type.",
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.CommandDuration, m.StockMovements)
	}
	return m
}

func (m *Metrics) ObserveCommand(command, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AddMovement(movementType string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(movementType).Inc()
}
