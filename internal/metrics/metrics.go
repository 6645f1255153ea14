package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_batches_received_total",
		Help: "Telemetry batches handed to the processor",
	})

	EventsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_events_received_total",
		Help: "Telemetry events received across all batches",
	})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_events_dropped_total",
		Help: "Telemetry events dropped for a missing vehicle id or bad odometer",
	})

	GroupsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_groups_total",
		Help: "Vehicle groups processed, by outcome",
	}, []string{"outcome"})

	AlertsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_alerts_raised_total",
		Help: "Trip alerts raised, by kind",
	}, []string{"kind"})

	AlertChannelDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_alert_channel_drops_total",
		Help: "Alerts dropped because the dispatch channel was full",
	})

	AlertDeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_alert_delivery_failures_total",
		Help: "Alerts that could not be recorded or published",
	})

	AlertDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_alert_duplicates_total",
		Help: "Alerts suppressed because the same intent already raised them",
	})

	ActiveTripInvariantViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_active_trip_invariant_violations_total",
		Help: "Lookups that found more than one non-terminal trip for a vehicle",
	})

	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciler_batch_duration_seconds",
		Help:    "Time spent processing one telemetry batch",
		Buckets: prometheus.DefBuckets,
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		BatchesReceived,
		EventsReceived,
		EventsDropped,
		GroupsProcessed,
		AlertsRaised,
		AlertChannelDrops,
		AlertDeliveryFailures,
		AlertDuplicates,
		ActiveTripInvariantViolations,
		BatchDuration,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
