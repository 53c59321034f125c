package telemetry

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{})
	})
	return rec
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())

	// The no-op tracer still hands out usable spans.
	ctx, span := StartSpan(context.Background(), "noop")
	RecordError(ctx, errors.New("ignored"))
	span.End()
	assert.Empty(t, TraceID(ctx))
}

func TestSpansAreRecorded(t *testing.T) {
	rec := recordSpans(t)
	assert.True(t, IsEnabled())

	ctx, span := StartSpan(context.Background(), "accounts.create")
	SetAttributes(ctx, Actor("admin", "SuperAdmins")...)
	RecordError(ctx, errors.New("duplicate"))
	RecordError(ctx, nil)
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "accounts.create", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), Actor("admin", "SuperAdmins")[0])
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), Sampler(0.25).Description())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes(nil)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))

	_, err = parseProfileTypes([]string{"cpu", "heap"})
	assert.Error(t, err)

	names := ProfileTypes()
	sort.Strings(names)
	assert.Contains(t, names, "mutex_duration")
	assert.Len(t, names, 10)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
}
