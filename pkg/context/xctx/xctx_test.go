package xctx_test

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xeskit/pkg/context/xctx"
)

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

func TestTraceFields(t *testing.T) {
	ctx := context.Background()

	ctx, err := xctx.WithTraceID(ctx, "t1")
	require.NoError(t, err)
	ctx, err = xctx.WithSpanID(ctx, "s1")
	require.NoError(t, err)
	ctx, err = xctx.WithRequestID(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, "t1", xctx.TraceID(ctx))
	assert.Equal(t, "s1", xctx.SpanID(ctx))
	assert.Equal(t, "r1", xctx.RequestID(ctx))

	tr := xctx.GetTrace(ctx)
	assert.Equal(t, xctx.Trace{TraceID: "t1", SpanID: "s1", RequestID: "r1"}, tr)
	assert.NoError(t, tr.Validate())
}

func TestNilContext(t *testing.T) {
	//nolint:staticcheck // 故意传入 nil
	_, err := xctx.WithTraceID(nil, "x")
	assert.ErrorIs(t, err, xctx.ErrNilContext)

	//nolint:staticcheck // 故意传入 nil
	_, err = xctx.WithOpaqueID(nil, "x")
	assert.ErrorIs(t, err, xctx.ErrNilContext)

	//nolint:staticcheck // 故意传入 nil
	_, err = xctx.RequireOpaqueID(nil)
	assert.ErrorIs(t, err, xctx.ErrNilContext)

	//nolint:staticcheck // 故意传入 nil
	assert.Empty(t, xctx.OpaqueIDProvider(nil))
	//nolint:staticcheck // 故意传入 nil
	assert.Nil(t, xctx.LogAttrs(nil))
}

func TestTraceValidate(t *testing.T) {
	tests := []struct {
		name string
		tr   xctx.Trace
		want error
	}{
		{"empty", xctx.Trace{}, xctx.ErrMissingTraceID},
		{"no span", xctx.Trace{TraceID: "t"}, xctx.ErrMissingSpanID},
		{"no request", xctx.Trace{TraceID: "t", SpanID: "s"}, xctx.ErrMissingRequestID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.tr.Validate(), tt.want)
		})
	}
}

func TestGenerateIDs(t *testing.T) {
	assert.Regexp(t, traceIDPattern, xctx.GenerateTraceID())
	assert.Regexp(t, spanIDPattern, xctx.GenerateSpanID())
	assert.NotEqual(t, xctx.GenerateRequestID(), xctx.GenerateRequestID())
}

func TestEnsureTrace(t *testing.T) {
	t.Run("fills missing", func(t *testing.T) {
		ctx, err := xctx.EnsureTrace(context.Background())
		require.NoError(t, err)
		assert.NoError(t, xctx.GetTrace(ctx).Validate())
		assert.Regexp(t, traceIDPattern, xctx.TraceID(ctx))
	})

	t.Run("keeps existing", func(t *testing.T) {
		ctx, err := xctx.WithRequestID(context.Background(), "keep-me")
		require.NoError(t, err)
		ctx, err = xctx.EnsureTrace(ctx)
		require.NoError(t, err)
		assert.Equal(t, "keep-me", xctx.RequestID(ctx))
	})

	t.Run("ensure request id", func(t *testing.T) {
		ctx, err := xctx.EnsureRequestID(context.Background())
		require.NoError(t, err)
		id, err := xctx.RequireRequestID(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})
}

func TestWithTraceSkipsEmpty(t *testing.T) {
	ctx, err := xctx.WithTraceID(context.Background(), "parent")
	require.NoError(t, err)

	ctx, err = xctx.WithTrace(ctx, xctx.Trace{SpanID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, "parent", xctx.TraceID(ctx))
	assert.Equal(t, "s2", xctx.SpanID(ctx))
}

func TestRequireOpaqueID(t *testing.T) {
	_, err := xctx.RequireOpaqueID(context.Background())
	assert.ErrorIs(t, err, xctx.ErrMissingOpaqueID)

	ctx, err := xctx.WithOpaqueID(context.Background(), "op-1")
	require.NoError(t, err)
	v, err := xctx.RequireOpaqueID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "op-1", v)
}

func TestOpaqueIDProvider(t *testing.T) {
	bg := context.Background()
	withOpaque, _ := xctx.WithOpaqueID(bg, "op-1")
	withRequest, _ := xctx.WithRequestID(bg, "req-42")
	withBoth, _ := xctx.WithOpaqueID(withRequest, "op-2")
	withExec, _ := xctx.WithExecution(withRequest, xctx.Execution{Type: "task", Name: "reindex", ID: "7"})
	execOnly, _ := xctx.WithExecution(bg, xctx.Execution{Type: "task", Name: "reindex"})

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"empty", bg, ""},
		{"opaque id", withOpaque, "op-1"},
		{"falls back to request id", withRequest, "req-42"},
		{"opaque id wins", withBoth, "op-2"},
		{"appends execution label", withExec, "req-42;task:reindex:7"},
		{"execution alone yields nothing", execOnly, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, xctx.OpaqueIDProvider(tt.ctx))
		})
	}
}

func TestOpaqueIDProviderConcurrent(t *testing.T) {
	ctx, _ := xctx.WithOpaqueID(context.Background(), "shared")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "shared", xctx.OpaqueIDProvider(ctx))
		}()
	}
	wg.Wait()
}

func TestExecutionLabel(t *testing.T) {
	assert.Empty(t, xctx.Execution{}.Label())
	assert.True(t, xctx.Execution{}.IsZero())
	assert.Equal(t, "page:discover", xctx.Execution{Type: "page", Name: "discover"}.Label())
	assert.Equal(t, xctx.Execution{}, xctx.GetExecution(context.Background()))
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, xctx.LogAttrs(context.Background()))

	ctx, _ := xctx.WithTraceID(context.Background(), "t1")
	ctx, _ = xctx.WithOpaqueID(ctx, "op")
	attrs := xctx.LogAttrs(ctx)
	require.Len(t, attrs, 2)
	assert.Equal(t, slog.String(xctx.KeyTraceID, "t1"), attrs[0])
	assert.Equal(t, slog.String(xctx.KeyOpaqueID, "op"), attrs[1])

	pre := []slog.Attr{slog.String("k", "v")}
	out := xctx.AppendTraceAttrs(pre, ctx)
	assert.Len(t, out, 3)
}
