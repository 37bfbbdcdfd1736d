package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func newObservedLogger(level logger.LogLevel, showSQL bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLogger(zap.New(core), level, 50*time.Millisecond, showSQL), logs
}

func query(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestLoggerTraceCarriesSpan(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn, false)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.Trace(ctx, time.Now(), query("UPDATE snapshots", 0), errors.New("disk full"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "[DB] query failed", entries[0].Message)
	require.Equal(t, sc.TraceID().String(), entries[0].ContextMap()["trace_id"])
}

func TestLoggerTraceLevels(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn, false)

	l.Trace(context.Background(), time.Now(), query("SELECT 1", 0), logger.ErrRecordNotFound)
	require.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), query("SELECT 1", 1), nil)
	require.Equal(t, 1, logs.FilterMessage("[DB] slow query").Len())

	l.Trace(context.Background(), time.Now(), query("SELECT 1", 1), nil)
	require.Equal(t, 1, logs.Len())

	silent := l.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), query("SELECT 1", 0), errors.New("boom"))
	require.Equal(t, 1, logs.Len())
}

func TestLoggerTruncatesLongSQL(t *testing.T) {
	l, logs := newObservedLogger(logger.Info, true)

	l.Trace(context.Background(), time.Now(), query("INSERT "+strings.Repeat("x", 4096), 1), nil)

	entries := logs.FilterMessage("[DB] query").All()
	require.Len(t, entries, 1)
	sql := entries[0].ContextMap()["sql"].(string)
	require.Len(t, sql, maxLoggedSQL+3)
	require.True(t, strings.HasSuffix(sql, "..."))
}
