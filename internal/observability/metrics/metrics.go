package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for appointment flows.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	bookingLatency     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcare",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcare",
			Subsystem: "appointments",
			Name:      "cancellations_total",
			Help:      "Cancellations by the party that cancelled",
		}, []string{"cancelled_by"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcare",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Confirm/complete transitions by target status",
		}, []string{"status"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "healthcare",
			Subsystem: "appointments",
			Name:      "booking_latency_seconds",
			Help:      "Latency of booking requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.transitionsTotal, m.bookingLatency)
	return m
}

// ObserveBooking records one booking attempt. outcome is "booked" or the
// error kind that rejected it.
func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveCancellation(cancelledBy string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(cancelledBy).Inc()
}

func (m *BookingMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Inc()
}
