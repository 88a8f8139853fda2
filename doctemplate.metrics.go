package doctemplate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values
const (
	MetricStatusSuccess = "success"
	MetricStatusError   = "error"
	MetricResultHit     = "hit"
	MetricResultMiss    = "miss"
	MetricResultError   = "error"
)

const metricsNamespace = "doctemplate"

// Metrics records merge, parse and library outcomes.
//
// Metrics:
//   - doctemplate_merges_total: merges by status
//   - doctemplate_merge_duration_seconds: merge latency
//   - doctemplate_missing_fields_total: fields no source could resolve
//   - doctemplate_unknown_conditions_total: conditions no source could decide
//   - doctemplate_parse_total: parses by status
//   - doctemplate_library_lookups_total: library lookups by result
//
// A nil *Metrics records nothing.
type Metrics struct {
	mergesTotal       *prometheus.CounterVec
	mergeDuration     prometheus.Histogram
	missingFields     prometheus.Counter
	unknownConditions prometheus.Counter
	parseTotal        *prometheus.CounterVec
	libraryLookups    *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "merges_total",
				Help:      "Total number of template merges",
			},
			[]string{"status"},
		),
		mergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "merge_duration_seconds",
				Help:      "Template merge duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		missingFields: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "missing_fields_total",
				Help:      "Total number of fields no source could resolve",
			},
		),
		unknownConditions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "unknown_conditions_total",
				Help:      "Total number of conditions no source could decide",
			},
		),
		parseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "parse_total",
				Help:      "Total number of template parses",
			},
			[]string{"status"},
		),
		libraryLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "library_lookups_total",
				Help:      "Total number of library template lookups",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.mergesTotal,
		m.mergeDuration,
		m.missingFields,
		m.unknownConditions,
		m.parseTotal,
		m.libraryLookups,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeMerge(report *MergeCounts, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.mergeDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.mergesTotal.WithLabelValues(MetricStatusError).Inc()
		return
	}
	m.mergesTotal.WithLabelValues(MetricStatusSuccess).Inc()
	if report != nil {
		m.missingFields.Add(float64(report.MissingFields))
		m.unknownConditions.Add(float64(report.UnknownConditions))
	}
}

func (m *Metrics) observeParse(err error) {
	if m == nil {
		return
	}
	status := MetricStatusSuccess
	if err != nil {
		status = MetricStatusError
	}
	m.parseTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) observeLookup(result string) {
	if m == nil {
		return
	}
	m.libraryLookups.WithLabelValues(result).Inc()
}
