package sql

import (
	"context"
	"errors"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm's logs to the application logger.
// Bound parameters are never logged: they carry submitter emails.
type gormLogger struct {
	log   logger.Logger
	level gormlogger.LogLevel
}

func newGormLogger(log logger.Logger, level gormlogger.LogLevel) *gormLogger {
	return &gormLogger{log: logger.Named(log, "gorm"), level: level}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(msg, logger.Any("data", data))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(msg, logger.Any("data", data))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(msg, logger.Any("data", data))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("gorm query failed",
			logger.String("sql", strings.TrimSpace(sql)),
			logger.Int64("rows_affected", rows),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow gorm query",
			logger.String("sql", strings.TrimSpace(sql)),
			logger.Int64("rows_affected", rows),
			logger.Duration("elapsed", elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("gorm query",
			logger.String("sql", strings.TrimSpace(sql)),
			logger.Int64("rows_affected", rows),
			logger.Duration("elapsed", elapsed))
	}
}

// ParamsFilter drops bound values from logged statements.
func (l *gormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

var _ gormlogger.Interface = (*gormLogger)(nil)
