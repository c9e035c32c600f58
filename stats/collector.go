package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vault"

var _ prometheus.Collector = (*Collector)(nil)

// Collector exports a vault's statistics as prometheus gauges. The
// statistics are recomputed on every scrape.
type Collector struct {
	source       Source
	items        *prometheus.Desc
	sizeBytes    *prometheus.Desc
	maxSizeBytes *prometheus.Desc
	quotaRatio   *prometheus.Desc
}

// NewCollector creates a collector for source. labels are attached to
// every metric and should identify the vault.
func NewCollector(source Source, labels prometheus.Labels) *Collector {
	variable := []string{"backend"}

	return &Collector{
		source:       source,
		items:        prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "items"), "Number of records held, expired records included.", variable, labels),
		sizeBytes:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "size_bytes"), "Size of the serialized record set.", variable, labels),
		maxSizeBytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "max_size_bytes"), "Configured size limit.", variable, labels),
		quotaRatio:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "quota_ratio"), "Size divided by the size limit.", variable, labels),
	}
}

// Describe implements prometheus.Collector
func (collector *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.items
	ch <- collector.sizeBytes
	ch <- collector.maxSizeBytes
	ch <- collector.quotaRatio
}

// Collect implements prometheus.Collector
func (collector *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := Collect(collector.source)

	ch <- prometheus.MustNewConstMetric(collector.items, prometheus.GaugeValue, float64(stats.ItemCount), stats.BackendKind)
	ch <- prometheus.MustNewConstMetric(collector.sizeBytes, prometheus.GaugeValue, float64(stats.SizeBytes), stats.BackendKind)
	ch <- prometheus.MustNewConstMetric(collector.maxSizeBytes, prometheus.GaugeValue, float64(stats.MaxSizeBytes), stats.BackendKind)
	ch <- prometheus.MustNewConstMetric(collector.quotaRatio, prometheus.GaugeValue, stats.QuotaPercentage/100, stats.BackendKind)
}
