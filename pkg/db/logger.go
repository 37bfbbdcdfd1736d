package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const (
	defaultSlowQuery = 200 * time.Millisecond
	// snapshot upserts carry the whole marketplace state as a bound value
	maxLoggedSQL = 1024
)

// Logger sends gorm output to zap. Lines carry the trace of the calling operation when there is one.
type Logger struct {
	log     *zap.Logger
	level   logger.LogLevel
	slow    time.Duration
	showSQL bool
}

func NewLogger(z *zap.Logger, level logger.LogLevel, slow time.Duration, showSQL bool) *Logger {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &Logger{log: z, level: level, slow: slow, showSQL: showSQL}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *Logger) with(ctx context.Context) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l.log
	}
	return l.log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.with(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.with(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.with(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}

	fields := []zap.Field{
		zap.String("caller", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	log := l.with(ctx)
	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.level >= logger.Error:
		log.Error("[DB] query failed", append(fields, zap.Error(err))...)
	case elapsed > l.slow && l.level >= logger.Warn:
		log.Warn("[DB] slow query", append(fields, zap.Duration("threshold", l.slow))...)
	case l.showSQL && l.level >= logger.Info:
		log.Debug("[DB] query", fields...)
	}
}
