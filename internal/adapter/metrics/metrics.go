// Package metrics provides Prometheus metrics for the distribution service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	RowsClassified *prometheus.CounterVec
	UploadRows     prometheus.Histogram

	// Run metrics
	RunsStarted   prometheus.Counter
	RunsFinished  *prometheus.CounterVec
	RunsInFlight  prometheus.Gauge
	RunDuration   prometheus.Histogram
	RunSuccessPct prometheus.Histogram

	// Transfer metrics
	TransfersFinished *prometheus.CounterVec
	TransferDuration  *prometheus.HistogramVec
	RetryAttempts     *prometheus.CounterVec

	// Transport metrics
	RPCRequests *prometheus.CounterVec
}

// New creates the metrics on a dedicated registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tokendrop"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_classified_total",
				Help:      "Total number of recipient rows classified, by class",
			},
			[]string{"class"},
		),
		UploadRows: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_rows",
				Help:      "Number of rows per validated upload",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
			},
		),
		RunsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of batch runs started",
			},
		),
		RunsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of batch runs finished, by final status",
			},
			[]string{"status"},
		),
		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_in_flight",
				Help:      "Number of batch runs currently executing",
			},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of finished batch runs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2h
			},
		),
		RunSuccessPct: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_success_percent",
				Help:      "Share of successful operations per finished run",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),
		TransfersFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_finished_total",
				Help:      "Total number of transfer operations finished, by result and error kind",
			},
			[]string{"result", "kind"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Time from first dispatch to outcome, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"result"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of transfer retries, by error kind",
			},
			[]string{"kind"},
		),
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of gRPC requests, by method and status code",
			},
			[]string{"method", "code"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// ValidationFinished records the outcome of a validation pass.
func (m *Metrics) ValidationFinished(summary domain.ValidationSummary) {
	m.RowsClassified.WithLabelValues(string(domain.RowClassValid)).Add(float64(summary.Valid))
	m.RowsClassified.WithLabelValues(string(domain.RowClassInvalidAddress)).Add(float64(summary.InvalidAddress))
	m.RowsClassified.WithLabelValues(string(domain.RowClassInvalidAmount)).Add(float64(summary.InvalidAmount))
	m.RowsClassified.WithLabelValues(string(domain.RowClassDuplicate)).Add(float64(summary.Duplicates))
	m.UploadRows.Observe(float64(summary.Total))
}

// RunStarted records a run start.
func (m *Metrics) RunStarted(run domain.BatchRun) {
	m.RunsStarted.Inc()
	m.RunsInFlight.Inc()
}

// OperationFinished records the outcome of one transfer operation.
func (m *Metrics) OperationFinished(outcome domain.TransferOutcome, elapsed time.Duration) {
	result, kind := "success", ""
	if !outcome.Succeeded {
		result, kind = "failure", string(outcome.Kind)
	}
	m.TransfersFinished.WithLabelValues(result, kind).Inc()
	m.TransferDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// AttemptRetried records a retry.
func (m *Metrics) AttemptRetried(kind domain.ErrorKind) {
	m.RetryAttempts.WithLabelValues(string(kind)).Inc()
}

// RunFinished records a finished run.
func (m *Metrics) RunFinished(run domain.BatchRun) {
	m.RunsInFlight.Dec()
	m.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	m.RunDuration.Observe(run.Duration(run.EndedAt).Seconds())
	pct, _ := run.SuccessRate().Float64()
	m.RunSuccessPct.Observe(pct)
}

// RPCHandled records a handled gRPC request.
func (m *Metrics) RPCHandled(method, code string) {
	m.RPCRequests.WithLabelValues(method, code).Inc()
}
