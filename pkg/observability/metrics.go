// Package observability defines the Prometheus metrics of the relay and
// the HTTP middleware that records request metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulationBuckets covers simulation run times from 100ms to the
// two-minute range of a cold MATLAB start.
var SimulationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// ConfidenceBuckets spans the similarity ratio range [0, 1].
var ConfidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

var (
	// RequestsTotal counts HTTP requests by route, method and status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinbot_requests_total",
			Help: "Total requests",
		},
		[]string{"route", "method", "code"},
	)

	// RequestDuration records HTTP request duration in seconds. Query
	// latency is dominated by the simulation, hence its buckets.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twinbot_request_duration_seconds",
			Help:    "Request duration",
			Buckets: SimulationBuckets,
		},
		[]string{"route", "method"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "twinbot_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// ChatbotRepliesTotal counts replies by whether a trained statement
	// matched or the default response was used.
	ChatbotRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinbot_chatbot_replies_total",
			Help: "Chatbot replies",
		},
		[]string{"match"},
	)

	// ChatbotConfidence records the similarity of the best match.
	ChatbotConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "twinbot_chatbot_confidence",
			Help:    "Similarity ratio of the selected statement",
			Buckets: ConfidenceBuckets,
		},
	)

	// SimulationRunsTotal counts simulation runs by outcome
	// (ok, decode_error, or a failure kind).
	SimulationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinbot_simulation_runs_total",
			Help: "Simulation runs",
		},
		[]string{"outcome"},
	)

	// SimulationDuration records simulation wall time in seconds.
	SimulationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twinbot_simulation_duration_seconds",
			Help:    "Simulation duration",
			Buckets: SimulationBuckets,
		},
		[]string{"outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twinbot_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		ChatbotRepliesTotal,
		ChatbotConfidence,
		SimulationRunsTotal,
		SimulationDuration,
		RateLimitRejectedTotal,
	)
}

// ObserveReply records one chatbot reply.
func ObserveReply(confidence float64, matched bool) {
	label := "default"
	if matched {
		label = "matched"
	}
	ChatbotRepliesTotal.WithLabelValues(label).Inc()
	ChatbotConfidence.Observe(confidence)
}

// ObserveSimulation records one simulation run.
func ObserveSimulation(outcome string, d time.Duration) {
	SimulationRunsTotal.WithLabelValues(outcome).Inc()
	SimulationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
