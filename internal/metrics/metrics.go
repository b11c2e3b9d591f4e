package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leihlokal"

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Count of reservation submissions by outcome.",
		},
		[]string{"outcome"},
	)

	reservationItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_items",
			Help:      "Number of items per confirmed reservation.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		},
	)

	cartRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_full_total",
			Help:      "Count of cart additions rejected because the cart was full.",
		},
	)

	searchStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_stale_total",
			Help:      "Count of catalog searches dropped because a newer one replaced them.",
		},
	)

	digests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pickup_digests_total",
			Help:      "Count of daily pickup digests by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status class.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, reservationItems, cartRejected, searchStale, digests, httpRequests, httpDuration)
	})
}

// IncReservation counts a submission; outcome is "confirmed", "failed" or "invalid".
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func ObserveReservationItems(n int) {
	reservationItems.Observe(float64(n))
}

func IncCartFull() {
	cartRejected.Inc()
}

func IncSearchStale() {
	searchStale.Inc()
}

// IncDigest counts a pickup digest; outcome is "sent" or "failed".
func IncDigest(outcome string) {
	digests.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(route string, status int, seconds float64) {
	httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
