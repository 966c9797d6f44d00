package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	UpdatesProcessed     *prometheus.CounterVec
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	RateLimited          prometheus.Counter
	ActiveFlows          prometheus.Gauge
	UpdateProcessingTime prometheus.Histogram
}

// NewMetrics registers the collectors with reg; nil means the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_updates_total",
			Help: "Updates processed by kind",
		}, []string{"kind"}),

		CommandsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_commands_total",
			Help: "Commands processed by name",
		}, []string{"command"}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Errors and recovered panics while handling updates",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_rate_limited_total",
			Help: "Updates dropped by the per-user limiter",
		}),

		ActiveFlows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telegram_bot_active_flows",
			Help: "Booking wizards held in memory",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
