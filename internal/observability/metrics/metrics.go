package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "skytrack_"

	resultSuccess = "success"
	resultError   = "error"
)

// IngestResultSuccess and IngestResultError label ingest outcomes.
const (
	IngestResultSuccess = resultSuccess
	IngestResultError   = resultError
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	uploadAttempts *prometheus.CounterVec
	uploadLatency  *prometheus.HistogramVec
	uploadRetries  prometheus.Counter
	uploadBytes    prometheus.Counter

	capacityRejections prometheus.Counter
)

// GateStats exposes the supervisor counters the in-flight gauges read.
type GateStats interface {
	Inflight() int64
	Limit() int
}

// Init registers the pipeline metrics. The gate gauges are registered
// against the supervisor the same way DB-backed gauges would be; gate may
// be nil in tests.
func Init(gate GateStats) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		uploadAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upload_attempts_total",
				Help: "Total store upload attempts by result",
			},
			[]string{"result"},
		)
		uploadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upload_latency_seconds",
				Help:    "Store upload latency in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		uploadRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "upload_retries_total",
				Help: "Total store upload retry attempts",
			},
		)
		uploadBytes = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "upload_bytes_total",
				Help: "Total payload bytes written to the store",
			},
		)

		capacityRejections = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "capacity_rejections_total",
				Help: "Requests rejected because the concurrency gate was saturated",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			uploadAttempts,
			uploadLatency,
			uploadRetries,
			uploadBytes,
			capacityRejections,
		)

		if gate != nil {
			registerGateMetrics(gate)
		}
	})
}

// ObserveIngest records one ingest request outcome and its latency.
func ObserveIngest(result string, elapsed time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncIngestError counts an ingest error by reason.
func IncIngestError(reason string) {
	if ingestErrors == nil {
		return
	}
	ingestErrors.WithLabelValues(reason).Inc()
}

// ObserveUpload records one store upload (all retries of one event) with
// its total latency, retry count, and payload size.
func ObserveUpload(result string, elapsed time.Duration, retries int, bytes int) {
	if uploadAttempts == nil {
		return
	}
	uploadAttempts.WithLabelValues(result).Inc()
	uploadLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	if retries > 0 {
		uploadRetries.Add(float64(retries))
	}
	if result == resultSuccess && bytes > 0 {
		uploadBytes.Add(float64(bytes))
	}
}

// IncCapacityRejection counts a gate rejection.
func IncCapacityRejection() {
	if capacityRejections == nil {
		return
	}
	capacityRejections.Inc()
}
