// Package metrics exposes the exporter's Prometheus gauges and the
// exposition handler they are scraped from.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

const namespace = "idrive"

// Metrics holds the exporter's gauges on a dedicated registry.
// It implements collector.Sink.
type Metrics struct {
	registry *prometheus.Registry

	bucketSize      *prometheus.GaugeVec
	objectCount     *prometheus.GaugeVec
	lastModified    *prometheus.GaugeVec
	scrapeDuration  *prometheus.GaugeVec
	scrapeSuccess   *prometheus.GaugeVec
	bucketHealthy   *prometheus.GaugeVec
	exporterHealthy prometheus.Gauge
	info            *prometheus.GaugeVec
}

// New creates the gauge set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		bucketSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_size_bytes",
			Help:      "Total size of the bucket in bytes",
		}, []string{"bucket"}),
		objectCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_object_count",
			Help:      "Number of objects in the bucket",
		}, []string{"bucket"}),
		lastModified: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_last_modified",
			Help:      "Unix timestamp of the most recently modified object in the bucket",
		}, []string{"bucket"}),
		scrapeDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Time taken to collect the bucket's statistics",
		}, []string{"bucket"}),
		scrapeSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scrape_success",
			Help:      "Whether the last collection for the bucket succeeded (1) or failed (0)",
		}, []string{"bucket"}),
		bucketHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_healthy",
			Help:      "Whether the bucket's latest collection outcome is a success (1) or a failure (0)",
		}, []string{"bucket"}),
		exporterHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exporter_healthy",
			Help:      "Whether every configured bucket's latest collection succeeded (1) or not (0)",
		}),
		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exporter_info",
			Help:      "Static exporter information",
		}, []string{"version", "endpoint", "buckets"}),
	}
}

// SetInfo publishes the static info metric. Called once at startup.
func (m *Metrics) SetInfo(version, endpoint string, buckets []string) {
	m.info.WithLabelValues(version, endpoint, strings.Join(buckets, ",")).Set(1)
}

// ObserveOutcome pushes one bucket outcome into the gauges. On failure
// only the success and health indicators change; the last successful
// stats stay exported until the next successful pass replaces them.
func (m *Metrics) ObserveOutcome(o collector.Outcome) {
	if !o.Success() {
		m.scrapeSuccess.WithLabelValues(o.Bucket).Set(0)
		m.bucketHealthy.WithLabelValues(o.Bucket).Set(0)
		return
	}

	stats := o.Stats
	m.bucketSize.WithLabelValues(o.Bucket).Set(float64(stats.TotalSize))
	m.objectCount.WithLabelValues(o.Bucket).Set(float64(stats.ObjectCount))
	if !stats.LastModified.IsZero() {
		m.lastModified.WithLabelValues(o.Bucket).Set(float64(stats.LastModified.Unix()))
	}
	m.scrapeDuration.WithLabelValues(o.Bucket).Set(stats.Duration.Seconds())
	m.scrapeSuccess.WithLabelValues(o.Bucket).Set(1)
	m.bucketHealthy.WithLabelValues(o.Bucket).Set(1)
}

// SetExporterHealthy publishes overall health after a pass.
func (m *Metrics) SetExporterHealthy(healthy bool) {
	if healthy {
		m.exporterHealthy.Set(1)
	} else {
		m.exporterHealthy.Set(0)
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
