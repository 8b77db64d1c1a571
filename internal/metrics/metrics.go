// Package metrics exposes Prometheus counters for the exam engine and its
// HTTP boundary. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cbt"

// Submission outcomes.
const (
	SubmissionAccepted  = "accepted"
	SubmissionDuplicate = "duplicate"
	SubmissionClosed    = "closed"
)

// Extraction outcomes.
const (
	ExtractionOK        = "ok"
	ExtractionEmpty     = "empty"
	ExtractionUnchanged = "unchanged"
)

type Metrics struct {
	submissions    *prometheus.CounterVec
	regradeRuns    prometheus.Counter
	regradeRecords *prometheus.CounterVec
	extractions    *prometheus.CounterVec
	questions      *prometheus.CounterVec
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome.",
		}, []string{"result"}),
		regradeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regrade_runs_total",
			Help:      "Regrade runs started.",
		}),
		regradeRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regrade_records_total",
			Help:      "Submissions processed by regrade, by outcome.",
		}, []string{"result"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Document imports by outcome.",
		}, []string{"result"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_questions_total",
			Help:      "Questions produced by the extractor, by kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.submissions, m.regradeRuns, m.regradeRecords,
		m.extractions, m.questions, m.requests, m.duration)
	return m
}

// Submission counts one submission attempt.
func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

// RegradeRun counts a started regrade.
func (m *Metrics) RegradeRun() {
	if m == nil {
		return
	}
	m.regradeRuns.Inc()
}

// RegradeRecord counts one regraded submission.
func (m *Metrics) RegradeRecord(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.regradeRecords.WithLabelValues(result).Inc()
}

// Extraction counts one document import and the questions it produced.
func (m *Metrics) Extraction(result string, mc, or int) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(result).Inc()
	m.questions.WithLabelValues("mc").Add(float64(mc))
	m.questions.WithLabelValues("or").Add(float64(or))
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
