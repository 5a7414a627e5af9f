package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	GateDecisions      *prometheus.CounterVec
	AnswersAccepted    prometheus.Counter
	EvaluationDuration prometheus.Histogram
	WSConnections      prometheus.Gauge
	RequestCounter     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_gate_decisions_total",
				Help: "Gate decisions by outcome and reason",
			},
			[]string{"result", "reason"},
		),
		AnswersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_accepted_total",
			Help: "Answers persisted after passing the gate",
		}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_evaluation_duration_seconds",
			Help:    "Duration of quiz evaluations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_ws_connections",
			Help: "Open participant websocket connections",
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}
	reg.MustRegister(
		m.GateDecisions,
		m.AnswersAccepted,
		m.EvaluationDuration,
		m.WSConnections,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// ObserveDecision counts a gate decision.
func (m *Metrics) ObserveDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	result := "blocked"
	if allowed {
		result = "allowed"
	}
	m.GateDecisions.WithLabelValues(result, reason).Inc()
}

// AnswerAccepted counts a persisted answer.
func (m *Metrics) AnswerAccepted() {
	if m == nil {
		return
	}
	m.AnswersAccepted.Inc()
}

// ObserveEvaluation records how long an evaluation took.
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(d.Seconds())
}

// ConnectionOpened and ConnectionClosed track live websocket connections.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations labelled by the matched mux route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
