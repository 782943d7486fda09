package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification results.
const (
	ResultSent       = "sent"
	ResultFailed     = "failed"
	ResultSuppressed = "suppressed"
)

// Recorder records service metrics using Prometheus. A nil Recorder is a no-op.
type Recorder struct {
	evaluations   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosentinel_evaluations_total",
				Help: "Total number of signal evaluations by asset and outcome",
			},
			[]string{"asset", "signal"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosentinel_fetch_errors_total",
				Help: "Total number of market data fetch failures",
			},
			[]string{"provider"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptosentinel_fetch_duration_seconds",
				Help:    "Duration of market data fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosentinel_notifications_total",
				Help: "Total number of notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptosentinel_last_price",
				Help: "Last evaluated price for an asset",
			},
			[]string{"asset"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptosentinel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptosentinel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"path", "method"},
		),
	}
}

// RecordEvaluation counts one evaluator outcome.
func (r *Recorder) RecordEvaluation(asset, signal string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(asset, signal).Inc()
}

// RecordFetch observes a provider call and counts it as an error when err is set.
func (r *Recorder) RecordFetch(provider string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		r.fetchErrors.WithLabelValues(provider).Inc()
	}
}

// RecordNotification counts one delivery attempt.
func (r *Recorder) RecordNotification(channel, result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(channel, result).Inc()
}

// RecordLastPrice records the last price for an asset.
func (r *Recorder) RecordLastPrice(asset string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(asset).Set(price)
}

// RecordHTTP records a served request.
func (r *Recorder) RecordHTTP(path, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
}
