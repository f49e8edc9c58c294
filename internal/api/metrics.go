package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"figgie-server/internal/game"
)

// Metrics holds the Prometheus instruments for one server instance. It
// doubles as a game.Sink, so round events feed the counters directly.
// Each instance owns its registry; several servers can then share a
// process without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	joins           prometheus.Counter
	ordersRested    prometheus.Counter
	trades          prometheus.Counter
	cancels         *prometheus.CounterVec
	roundsStarted   prometheus.Counter
	roundsCompleted prometheus.Counter
	roundsFailed    prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the full instrument set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_joins_total",
			Help: "Players seated since the server started",
		}),
		ordersRested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_orders_rested_total",
			Help: "Orders that reached a book",
		}),
		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_trades_total",
			Help: "Executed trades",
		}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "figgie_cancels_total",
			Help: "Resting orders removed before trading, by reason",
		}, []string{"reason"}),
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_rounds_started_total",
			Help: "Rounds that reached the trading phase",
		}),
		roundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_rounds_completed_total",
			Help: "Rounds settled at the deadline",
		}),
		roundsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "figgie_rounds_failed_total",
			Help: "Rounds abandoned after a failed consistency check",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "figgie_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.joins, m.ordersRested, m.trades, m.cancels,
		m.roundsStarted, m.roundsCompleted, m.roundsFailed, m.requestDuration)
	return m
}

// Emit implements game.Sink. It only bumps counters, so it is safe to run
// inside the engine's critical section.
func (m *Metrics) Emit(ev game.Event) {
	switch ev.Kind {
	case game.EventRoundStarted:
		m.roundsStarted.Inc()
	case game.EventOrderRested:
		m.ordersRested.Inc()
	case game.EventTransaction:
		m.trades.Inc()
	case game.EventCancel:
		reason := ""
		if c, ok := ev.Data.(game.CancelEvent); ok {
			reason = c.Reason
		}
		m.cancels.WithLabelValues(reason).Inc()
	case game.EventRoundCompleted:
		m.roundsCompleted.Inc()
	case game.EventRoundFailed:
		m.roundsFailed.Inc()
	}
}

// JoinsInc counts one seated player. Joins have no round event, so the
// join handler calls this directly.
func (m *Metrics) JoinsInc() { m.joins.Inc() }

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
