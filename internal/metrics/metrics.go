package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinicbook"

var (
	once sync.Once

	clinicRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clinic_requests_total",
			Help:      "Clinic backend requests by endpoint and outcome.",
		},
		[]string{"endpoint", "status"},
	)

	clinicLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clinic_request_duration_seconds",
			Help:      "Clinic backend request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookingFunnel = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_funnel_total",
			Help:      "Booking wizard events by stage.",
		},
		[]string{"stage"},
	)

	staleResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Fetch results dropped because a newer fetch superseded them.",
		},
		[]string{"resolver"},
	)

	placeholderGrids = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_slot_grids_total",
			Help:      "Demo placeholder slot grids served instead of real availability.",
		},
	)
)

// Funnel stages.
const (
	StageStarted         = "started"
	StageSuggestionAdopt = "suggestion_adopted"
	StageSubmitted       = "submitted"
	StageCreated         = "created"
	StageRejected        = "rejected"
	StageFailed          = "failed"
	StageCancelled       = "cancelled"
	StageAppointmentDrop = "appointment_cancelled"
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(clinicRequests, clinicLatency, bookingFunnel, staleResults, placeholderGrids)
	})
}

// ObserveClinic records one backend call.
func ObserveClinic(endpoint, status string, elapsed time.Duration) {
	clinicRequests.WithLabelValues(endpoint, status).Inc()
	clinicLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncFunnel(stage string) {
	bookingFunnel.WithLabelValues(stage).Inc()
}

// FunnelCounter returns the counter behind one funnel stage.
func FunnelCounter(stage string) prometheus.Counter {
	return bookingFunnel.WithLabelValues(stage)
}

func IncStale(resolver string) {
	staleResults.WithLabelValues(resolver).Inc()
}

func IncPlaceholder() {
	placeholderGrids.Inc()
}
