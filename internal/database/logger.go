package database

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration above which a query is logged as slow
const SlowQueryThreshold = 100 * time.Millisecond

// Logger reports only real errors and slow queries; record-not-found is expected
// traffic and stays quiet.
type Logger struct {
	log           logrus.FieldLogger
	SlowThreshold time.Duration
}

// NewLogger wraps a logrus logger for GORM
func NewLogger(log logrus.FieldLogger) *Logger {
	return &Logger{log: log, SlowThreshold: SlowQueryThreshold}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.log.Warnf(msg, data...)
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.log.Errorf(msg, data...)
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{
			"elapsed": elapsed,
			"rows":    rows,
			"sql":     sql,
		}).WithError(err).Error("SQL error")
	case elapsed >= l.SlowThreshold:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{
			"elapsed": elapsed,
			"rows":    rows,
			"sql":     sql,
		}).Warn("Slow SQL")
	}
}
