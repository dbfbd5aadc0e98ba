package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the clinic queue and booking flows.
type Metrics struct {
	checkInsTotal  *prometheus.CounterVec
	callsTotal     *prometheus.CounterVec
	completedTotal *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkInsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniq",
			Subsystem: "queue",
			Name:      "check_ins_total",
			Help:      "Total patient check-ins",
		}, []string{"dept", "score"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniq",
			Subsystem: "queue",
			Name:      "call_next_total",
			Help:      "Total call-next requests",
		}, []string{"dept", "result"}),
		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniq",
			Subsystem: "queue",
			Name:      "completed_total",
			Help:      "Total visits marked complete",
		}, []string{"dept"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniq",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total appointment booking attempts",
		}, []string{"dept", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cliniq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.checkInsTotal, m.callsTotal, m.completedTotal, m.bookingsTotal, m.httpRequests, m.httpLatency)
	return m
}

func (m *Metrics) ObserveCheckIn(dept string, score int) {
	if m == nil {
		return
	}
	m.checkInsTotal.WithLabelValues(dept, scoreLabel(score)).Inc()
}

// ObserveCallNext records a call-next outcome; called is false for an empty queue.
func (m *Metrics) ObserveCallNext(dept string, called bool) {
	if m == nil {
		return
	}
	result := "empty"
	if called {
		result = "called"
	}
	m.callsTotal.WithLabelValues(dept, result).Inc()
}

func (m *Metrics) ObserveComplete(dept string) {
	if m == nil {
		return
	}
	m.completedTotal.WithLabelValues(dept).Inc()
}

// ObserveBooking records a booking outcome: "booked", "taken", "invalid" or "error".
func (m *Metrics) ObserveBooking(dept, result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(dept, result).Inc()
}

func (m *Metrics) ObserveHTTP(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(method).Observe(seconds)
}

func scoreLabel(score int) string {
	switch score {
	case 5:
		return "high"
	case 3:
		return "medium"
	default:
		return "low"
	}
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
