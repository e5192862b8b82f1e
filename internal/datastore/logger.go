// logger.go: GORM logger bridging query logging onto slog, recording
// operation counts and latency when metrics are attached.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/printprob/bookdb/internal/errors"
	"github.com/printprob/bookdb/internal/logging"
	"github.com/printprob/bookdb/internal/observability/metrics"
)

const sqlUnknown = "unknown"

var (
	selectPattern = regexp.MustCompile(`(?i)^\s*SELECT\s+.*?\s+FROM\s+['"` + "`" + `]?(\w+)['"` + "`" + `]?`)
	insertPattern = regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+['"` + "`" + `]?(\w+)['"` + "`" + `]?`)
	updatePattern = regexp.MustCompile(`(?i)^\s*UPDATE\s+['"` + "`" + `]?(\w+)['"` + "`" + `]?`)
	deletePattern = regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\s+['"` + "`" + `]?(\w+)['"` + "`" + `]?`)
)

// gormLogger implements gorm's logger.Interface on slog. Query metrics are
// recorded when a metrics instance has been attached to the store.
type gormLogger struct {
	slowThreshold time.Duration
	level         gormlogger.LogLevel
	metrics       *metrics.DatastoreMetrics
	log           *slog.Logger
}

func newGormLogger(m *metrics.DatastoreMetrics) *gormLogger {
	log := logging.ForService("datastore")
	if log == nil {
		log = slog.Default()
	}
	return &gormLogger{
		slowThreshold: 200 * time.Millisecond,
		level:         gormlogger.Warn,
		metrics:       m,
		log:           log,
	}
}

// LogMode implements logger.Interface
func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copied := *l
	copied.level = level
	return &copied
}

// Info implements logger.Interface
func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Warn implements logger.Interface
func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Error implements logger.Interface
func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	operation, table := parseSQLOperation(sql)

	if l.metrics != nil {
		l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.ErrorContext(ctx, "Query failed",
			"error", err,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
		if l.metrics != nil {
			l.metrics.RecordDbOperationError(operation, table, categorizeError(err))
		}
	case l.slowThreshold != 0 && elapsed > l.slowThreshold:
		l.log.WarnContext(ctx, "Slow query",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows,
			"threshold", l.slowThreshold)
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}
	default:
		if l.level >= gormlogger.Info {
			l.log.DebugContext(ctx, "Query executed",
				"sql", sql,
				"duration", elapsed,
				"rows_affected", rows)
		}
		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}
	}
}

// parseSQLOperation extracts the operation type and table name from a query.
func parseSQLOperation(sql string) (operation, table string) {
	sql = strings.TrimSpace(sql)

	if matches := selectPattern.FindStringSubmatch(sql); len(matches) > 1 {
		return "select", matches[1]
	}
	if matches := insertPattern.FindStringSubmatch(sql); len(matches) > 1 {
		return "insert", matches[1]
	}
	if matches := updatePattern.FindStringSubmatch(sql); len(matches) > 1 {
		return "update", matches[1]
	}
	if matches := deletePattern.FindStringSubmatch(sql); len(matches) > 1 {
		return "delete", matches[1]
	}
	return sqlUnknown, sqlUnknown
}

// categorizeError buckets database errors for the error metric label.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate"):
		return "constraint_violation"
	case strings.Contains(errStr, "foreign key"):
		return "foreign_key_violation"
	case strings.Contains(errStr, "database is locked"):
		return "database_locked"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	default:
		return "other"
	}
}
