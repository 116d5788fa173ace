package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinicbook"

var (
	once sync.Once

	bookingAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_booking_total",
			Help:      "Count of deposit booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	depositCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_sessions_credited_total",
			Help:      "Sessions credited to deposits by source.",
		},
		[]string{"source"},
	)

	manualDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_deposit_decision_total",
			Help:      "Count of admin decisions over manual deposits.",
		},
		[]string{"decision"},
	)

	appointmentsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_cancelled_total",
			Help:      "Count of appointments deleted.",
		},
	)

	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_resolve_duration_seconds",
			Help:      "Time to resolve the slots of one doctor and date.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_lock_wait_seconds",
			Help:      "Time spent waiting for a slot lock.",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 2, 5},
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingAttempts, depositCredited, manualDecision, appointmentsCancelled,
			resolveDuration, lockWait, httpRequests,
		)
	})
}

func IncBooking(outcome string) {
	bookingAttempts.WithLabelValues(outcome).Inc()
}

func AddDepositCredited(source string, sessions int) {
	depositCredited.WithLabelValues(source).Add(float64(sessions))
}

func IncManualDecision(decision string) {
	manualDecision.WithLabelValues(decision).Inc()
}

func IncAppointmentCancelled() {
	appointmentsCancelled.Inc()
}

func ObserveResolve(d time.Duration) {
	resolveDuration.Observe(d.Seconds())
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
