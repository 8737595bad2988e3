package xmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xeskit/pkg/context/xctx"
)

func newTestObserver(t *testing.T, opts ...Option) (Observer, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(append([]Option{WithTracerProvider(tp), WithMeterProvider(mp)}, opts...)...)
	require.NoError(t, err)
	return obs, exporter, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Client", KindClient.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
	assert.Equal(t, "Kind(-1)", Kind(-1).String())
}

func TestResultResolve(t *testing.T) {
	assert.Equal(t, StatusOK, Result{}.resolve())
	assert.Equal(t, StatusError, Result{Err: errors.New("x")}.resolve())
	assert.Equal(t, StatusOK, Result{Status: StatusOK, Err: errors.New("x")}.resolve())
}

func TestStart_NilObserver(t *testing.T) {
	//nolint:staticcheck // 故意传入 nil
	ctx, span := Start(nil, nil, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)
}

type nilSpanObserver struct{}

func (nilSpanObserver) Start(context.Context, SpanOptions) (context.Context, Span) { return nil, nil }

func TestStart_FallbackForBadObserver(t *testing.T) {
	ctx, span := Start(context.Background(), nilSpanObserver{}, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)
}

func TestNoopObserver(t *testing.T) {
	//nolint:staticcheck // 故意传入 nil
	ctx, span := NoopObserver{}.Start(nil, SpanOptions{})
	assert.NotNil(t, ctx)
	span.End(Result{})
}

func TestNewOTelObserver_Options(t *testing.T) {
	_, err := NewOTelObserver(nil)
	assert.ErrorIs(t, err, ErrNilOption)

	_, err = NewOTelObserver(WithDurationBuckets(1, 0.5))
	assert.ErrorIs(t, err, ErrInvalidBuckets)

	_, err = NewOTelObserver(WithDurationBuckets())
	assert.ErrorIs(t, err, ErrInvalidBuckets)

	obs, err := NewOTelObserver(WithInstrumentationName(""), WithTracerProvider(nil), WithMeterProvider(nil))
	require.NoError(t, err)
	assert.NotNil(t, obs)
}

func TestOTelObserver_RecordsSpanAndMetrics(t *testing.T) {
	obs, exporter, reader := newTestObserver(t, WithDurationBuckets(0.01, 0.1, 1))

	ctx, span := obs.Start(context.Background(), SpanOptions{
		Component: "xsearch",
		Operation: "perform",
		Kind:      KindClient,
		Attrs:     []Attr{String(AttrContextType, "data"), Int(AttrStatusCode, 200)},
	})
	assert.NotEmpty(t, xctx.TraceID(ctx))
	span.End(Result{Attrs: []Attr{Duration("took_ns", time.Millisecond)}})
	span.End(Result{Err: errors.New("ignored")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "xsearch.perform", spans[0].Name)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String(AttrContextType, "data"))

	metrics := collect(t, reader)
	sum, ok := metrics[MetricOperationTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 1, sum.DataPoints[0].Value)
	status, _ := sum.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, "ok", status.AsString())

	hist, ok := metrics[MetricOperationDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, []float64{0.01, 0.1, 1}, hist.DataPoints[0].Bounds)
}

func TestOTelObserver_ErrorStatus(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{})
	span.End(Result{Err: errors.New("boom")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)

	_, span = obs.Start(context.Background(), SpanOptions{})
	span.End(Result{Status: StatusError})
	spans = exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "operation failed", spans[1].Status.Description)
}

func TestOTelObserver_ParentFromXctx(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	ctx, err := xctx.WithTrace(context.Background(), xctx.Trace{
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:  "00f067aa0ba902b7",
	})
	require.NoError(t, err)

	ctx, span := obs.Start(ctx, SpanOptions{Component: "c", Operation: "o"})
	span.End(Result{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
	assert.Equal(t, spans[0].SpanContext.SpanID().String(), xctx.SpanID(ctx))
}

func TestKeyValue(t *testing.T) {
	tests := []struct {
		attr Attr
		want attribute.KeyValue
	}{
		{String("s", "v"), attribute.String("s", "v")},
		{Bool("b", true), attribute.Bool("b", true)},
		{Int64("i", 7), attribute.Int64("i", 7)},
		{Float64("f", 1.5), attribute.Float64("f", 1.5)},
		{Any("u", uint64(3)), attribute.Int64("u", 3)},
		{Any("ss", []string{"a"}), attribute.StringSlice("ss", []string{"a"})},
		{Any("x", struct{ A int }{1}), attribute.String("x", "{1}")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyValue(tt.attr), tt.attr.Key)
	}
	assert.Len(t, toOTel([]Attr{{Key: ""}, {Key: "k"}}), 0)
}
