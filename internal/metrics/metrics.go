// Package metrics records resolution and installer events as Prometheus
// metrics and writes them in the node_exporter textfile format, so CI
// machines can export timings of every stanza run.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the observability hook interfaces on a private
// registry.
type Recorder struct {
	reg *prometheus.Registry

	resolveTotal      *prometheus.CounterVec
	resolveDuration   prometheus.Histogram
	resolvedPackages  prometheus.Gauge
	fetchTotal        *prometheus.CounterVec
	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheTotal        *prometheus.CounterVec
	requestTotal      *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	lastRun           prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		resolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stanza_resolve_total",
				Help: "Number of dependency resolutions by result.",
			},
			[]string{"result"},
		),
		resolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stanza_resolve_duration_seconds",
				Help:    "Time taken to resolve and pin dependencies.",
				Buckets: prometheus.DefBuckets,
			},
		),
		resolvedPackages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stanza_resolved_packages",
				Help: "Number of packages pinned by the last resolution.",
			},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stanza_vcs_fetch_total",
				Help: "Number of repository checkouts made to pin VCS references.",
			},
			[]string{"result"},
		),
		operationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stanza_installer_operations_total",
				Help: "Number of installer process runs by job and result.",
			},
			[]string{"job", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stanza_installer_operation_duration_seconds",
				Help:    "Time taken by one installer process run.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stanza_cache_lookups_total",
				Help: "Number of index cache lookups by namespace and result.",
			},
			[]string{"namespace", "result"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stanza_index_requests_total",
				Help: "Number of package index requests by host and status code.",
			},
			[]string{"host", "code"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stanza_index_request_duration_seconds",
				Help:    "Time taken by package index requests.",
				Buckets: prometheus.DefBuckets,
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stanza_last_run_timestamp_seconds",
				Help: "Unix time the metrics file was last written.",
			},
		),
	}
	r.reg.MustRegister(
		r.resolveTotal,
		r.resolveDuration,
		r.resolvedPackages,
		r.fetchTotal,
		r.operationTotal,
		r.operationDuration,
		r.cacheTotal,
		r.requestTotal,
		r.requestDuration,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteFile writes all metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	r.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, r.reg)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (r *Recorder) OnResolveStart(context.Context, int) {}

func (r *Recorder) OnResolveComplete(_ context.Context, packages int, d time.Duration, err error) {
	r.resolveTotal.WithLabelValues(result(err)).Inc()
	r.resolveDuration.Observe(d.Seconds())
	if err == nil {
		r.resolvedPackages.Set(float64(packages))
	}
}

func (r *Recorder) OnFetch(_ context.Context, _, _, _ string, _ time.Duration, err error) {
	r.fetchTotal.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) OnOperationStart(context.Context, string, string) {}

func (r *Recorder) OnOperationComplete(_ context.Context, job, _ string, d time.Duration, err error) {
	r.operationTotal.WithLabelValues(job, result(err)).Inc()
	r.operationDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (r *Recorder) OnCacheHit(_ context.Context, namespace string) {
	r.cacheTotal.WithLabelValues(namespace, "hit").Inc()
}

func (r *Recorder) OnCacheMiss(_ context.Context, namespace string) {
	r.cacheTotal.WithLabelValues(namespace, "miss").Inc()
}

func (r *Recorder) OnCacheSet(context.Context, string, int) {}

func (r *Recorder) OnRequest(context.Context, string, string, string) {}

func (r *Recorder) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	r.requestTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
	r.requestDuration.Observe(d.Seconds())
}

func (r *Recorder) OnError(_ context.Context, _, host, _ string, _ error) {
	r.requestTotal.WithLabelValues(host, "error").Inc()
}
