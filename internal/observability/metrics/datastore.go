// Package metrics provides datastore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	dbTableRowCountGauge *prometheus.GaugeVec

	annotationsTotal       *prometheus.CounterVec
	groupingMutationsTotal *prometheus.CounterVec

	cacheOperationsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() error {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"}, // operation: create, get, list, update, delete; status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	m.dbTableRowCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datastore_db_table_row_count",
		Help: "Number of rows in database tables",
	}, []string{"table"})

	m.annotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_character_annotations_total",
			Help: "Total number of characters annotated by curators",
		},
		[]string{"status"}, // status: success, error
	)

	m.groupingMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_grouping_mutations_total",
			Help: "Total number of grouping membership changes",
		},
		[]string{"operation", "status"}, // operation: add, remove
	)

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"cache_type", "operation", "result"}, // result: hit, miss
	)

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbTableRowCountGauge,
		m.annotationsTotal,
		m.groupingMutationsTotal,
		m.cacheOperationsTotal,
	}

	return nil
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDbOperation records a database operation
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration records the duration of a database operation
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError records a database operation error
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, table, errorType).Inc()
	m.dbOperationsTotal.WithLabelValues(operation, table, "error").Inc()
}

// UpdateTableRowCount updates table row count metrics
func (m *DatastoreMetrics) UpdateTableRowCount(table string, rowCount int64) {
	m.dbTableRowCountGauge.WithLabelValues(table).Set(float64(rowCount))
}

// RecordAnnotations records the outcome of a batch annotation, counting the
// characters affected.
func (m *DatastoreMetrics) RecordAnnotations(count int, status string) {
	m.annotationsTotal.WithLabelValues(status).Add(float64(count))
}

// RecordGroupingMutation records a grouping membership change
func (m *DatastoreMetrics) RecordGroupingMutation(operation, status string) {
	m.groupingMutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheOperation records a cache operation
func (m *DatastoreMetrics) RecordCacheOperation(cacheType, operation, result string) {
	m.cacheOperationsTotal.WithLabelValues(cacheType, operation, result).Inc()
}
