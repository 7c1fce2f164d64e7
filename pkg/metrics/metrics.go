package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the service exports. Each Collector has its own
// registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SlotsCreatedTotal  prometheus.Counter
	SlotConflictsTotal prometheus.Counter
	SlotsRemovedTotal  prometheus.Counter
	SlotsPrunedTotal   prometheus.Counter

	ReservationsTotal  *prometheus.CounterVec
	ConfirmationsTotal *prometheus.CounterVec
	ReleasesTotal      *prometheus.CounterVec

	SweepRunsTotal   prometheus.Counter
	SweepDuration    prometheus.Histogram
	SweepErrorsTotal prometheus.Counter

	LockWaitDuration  *prometheus.HistogramVec
	LockTimeoutsTotal *prometheus.CounterVec

	KafkaMessagesTotal *prometheus.CounterVec
	KafkaDuration      *prometheus.HistogramVec
}

func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SlotsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "created_total",
			Help:      "Total slots persisted, one per accepted occurrence.",
		}),

		SlotConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "conflicts_total",
			Help:      "Total candidate occurrences rejected for overlapping an existing slot.",
		}),

		SlotsRemovedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "removed_total",
			Help:      "Total available slots removed by their provider.",
		}),

		SlotsPrunedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "slots",
			Name:      "pruned_total",
			Help:      "Total ended slots hidden from read results.",
		}),

		ReservationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "reservations",
			Name:      "reserve_total",
			Help:      "Reserve attempts by outcome.",
		}, []string{"outcome"}),

		ConfirmationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "reservations",
			Name:      "confirm_total",
			Help:      "Confirm attempts by outcome.",
		}, []string{"outcome"}),

		ReleasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "reservations",
			Name:      "release_total",
			Help:      "Reservations returned to available, by reason.",
		}, []string{"reason"}),

		SweepRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Total timeout sweeps executed.",
		}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "sweeper",
			Name:      "duration_seconds",
			Help:      "Timeout sweep latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		SweepErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "sweeper",
			Name:      "errors_total",
			Help:      "Timeout sweeps that failed. Alert if increasing.",
		}),

		LockWaitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "lock",
			Name:      "wait_duration_seconds",
			Help:      "Time spent acquiring the provider-day lock.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 3.0},
		}, []string{"backend"}),

		LockTimeoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "lock",
			Name:      "timeouts_total",
			Help:      "Provider-day lock acquisitions that gave up waiting.",
		}, []string{"backend"}),

		KafkaMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Kafka messages by direction, topic and result.",
		}, []string{"direction", "topic", "result"}),

		KafkaDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "kafka",
			Name:      "duration_seconds",
			Help:      "Kafka publish and handle latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"direction", "topic"}),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
