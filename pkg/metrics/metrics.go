// Package metrics exposes Prometheus instrumentation for the record engine,
// the record pool and the archive.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/mseedkit/pkg/mseed"
	"github.com/ssargent/mseedkit/pkg/pool"
)

const (
	statusStored    = "stored"
	statusDuplicate = "duplicate"
	statusError     = "error"
)

// Metrics holds all Prometheus metrics for mseedkit
type Metrics struct {
	// Record engine metrics
	anomaliesTotal    *prometheus.CounterVec
	recordsReadTotal  prometheus.Counter
	recordsSkipped    prometheus.Counter
	resegmentTotal    *prometheus.CounterVec
	resegmentOutputs  *prometheus.CounterVec
	duplicatesDropped prometheus.Counter

	// Pool metrics
	poolRecords   *prometheus.GaugeVec
	poolHighWater prometheus.Gauge
	poolLive      prometheus.Gauge
	poolMisuse    prometheus.Gauge

	// Archive metrics
	archivePutsTotal *prometheus.CounterVec
}

// New creates all metrics and registers them on reg. A nil reg leaves the
// metrics unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		anomaliesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mseed_anomalies_total",
				Help: "Total number of non-fatal record anomalies by kind",
			},
			[]string{"kind"},
		),

		recordsReadTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mseed_records_read_total",
			Help: "Total number of records read from input streams",
		}),

		recordsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "mseed_records_skipped_total",
			Help: "Total number of input records that could not be loaded",
		}),

		resegmentTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mseed_resegment_total",
				Help: "Total number of resegmented records by path",
			},
			[]string{"path"},
		),

		resegmentOutputs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mseed_resegment_outputs_total",
				Help: "Total number of records produced by resegmentation by path",
			},
			[]string{"path"},
		),

		duplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "mseed_duplicates_dropped_total",
			Help: "Total number of duplicate records dropped",
		}),

		poolRecords: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mseed_pool_records",
				Help: "Number of pooled records by state",
			},
			[]string{"state"},
		),

		poolHighWater: f.NewGauge(prometheus.GaugeOpts{
			Name: "mseed_pool_free_high_water",
			Help: "Largest free list size seen",
		}),

		poolLive: f.NewGauge(prometheus.GaugeOpts{
			Name: "mseed_pool_live_records",
			Help: "Number of record instances the pool owns",
		}),

		poolMisuse: f.NewGauge(prometheus.GaugeOpts{
			Name: "mseed_pool_misuse",
			Help: "Number of releases of records not in use",
		}),

		archivePutsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mseed_archive_puts_total",
				Help: "Total number of archive writes by outcome",
			},
			[]string{"status"},
		),
	}
}

// Observe counts an anomaly. It satisfies mseed.Observer.
func (m *Metrics) Observe(a mseed.Anomaly) {
	m.anomaliesTotal.WithLabelValues(a.Kind.String()).Inc()
}

// ReportPool publishes a pool snapshot. It satisfies pool.StatsReporter.
func (m *Metrics) ReportPool(s pool.Stats) {
	m.poolRecords.WithLabelValues("free").Set(float64(s.Free))
	m.poolRecords.WithLabelValues("used").Set(float64(s.Used))
	m.poolHighWater.Set(float64(s.HighWater))
	m.poolLive.Set(float64(s.Live))
	m.poolMisuse.Set(float64(s.Misuse))
}

// RecordRead counts a record read from input
func (m *Metrics) RecordRead() {
	m.recordsReadTotal.Inc()
}

// RecordsSkipped adds n unreadable input records
func (m *Metrics) RecordsSkipped(n int) {
	m.recordsSkipped.Add(float64(n))
}

// Resegmented counts one resegmentation. Its signature matches
// mseed.ResegmentOptions.OnComplete.
func (m *Metrics) Resegmented(path mseed.ResegmentPath, outputs int) {
	m.resegmentTotal.WithLabelValues(path.String()).Inc()
	m.resegmentOutputs.WithLabelValues(path.String()).Add(float64(outputs))
}

// DuplicateDropped counts a dropped duplicate
func (m *Metrics) DuplicateDropped() {
	m.duplicatesDropped.Inc()
}

// ArchivePut counts one archive write outcome
func (m *Metrics) ArchivePut(stored bool, err error) {
	switch {
	case err != nil:
		m.archivePutsTotal.WithLabelValues(statusError).Inc()
	case stored:
		m.archivePutsTotal.WithLabelValues(statusStored).Inc()
	default:
		m.archivePutsTotal.WithLabelValues(statusDuplicate).Inc()
	}
}

var (
	_ mseed.Observer     = (*Metrics)(nil)
	_ pool.StatsReporter = (*Metrics)(nil)
)
