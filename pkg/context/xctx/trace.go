package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// =============================================================================
// ID 格式常量（遵循 W3C Trace Context 规范）
// =============================================================================

const (
	// TraceIDSize W3C 规范: 128-bit (16 bytes) -> 32 hex chars
	TraceIDSize = 16

	// SpanIDSize W3C 规范: 64-bit (8 bytes) -> 16 hex chars
	SpanIDSize = 8
)

// Trace Key 常量，遵循 OpenTelemetry 语义约定（下划线分隔）
const (
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyRequestID = "request_id"

	traceFieldCount = 3
)

const (
	keyTraceID   = contextKey("xctx:trace_id")
	keySpanID    = contextKey("xctx:span_id")
	keyRequestID = contextKey("xctx:request_id")
)

// =============================================================================
// 存取
// =============================================================================

// WithTraceID 将 trace ID 注入 context。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyTraceID, traceID), nil
}

// TraceID 从 context 提取 trace ID，不存在返回空字符串
func TraceID(ctx context.Context) string {
	return stringValue(ctx, keyTraceID)
}

// WithSpanID 将 span ID 注入 context。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keySpanID, spanID), nil
}

// SpanID 从 context 提取 span ID，不存在返回空字符串
func SpanID(ctx context.Context) string {
	return stringValue(ctx, keySpanID)
}

// WithRequestID 将 request ID 注入 context。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyRequestID, requestID), nil
}

// RequestID 从 context 提取 request ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// RequireRequestID 从 context 获取 request ID，不存在则返回 ErrMissingRequestID。
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := RequestID(ctx)
	if v == "" {
		return "", ErrMissingRequestID
	}
	return v, nil
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// =============================================================================
// ID 生成
// =============================================================================

// GenerateTraceID 生成符合 W3C Trace Context 规范的 TraceID（32 位小写十六进制）。
//
// 熵源不可用时 panic，与 OpenTelemetry SDK 的策略一致。
func GenerateTraceID() string {
	return randomHex(TraceIDSize)
}

// GenerateSpanID 生成符合 W3C Trace Context 规范的 SpanID（16 位小写十六进制）。
func GenerateSpanID() string {
	return randomHex(SpanIDSize)
}

// GenerateRequestID 生成 RequestID（UUIDv4 字符串）。
//
// RequestID 不在 W3C 标准中，采用 UUID 便于与网关、负载均衡器的 X-Request-ID 对齐。
func GenerateRequestID() string {
	return uuid.NewString()
}

// randomHex 生成 n 字节的非全零随机数并编码为十六进制。
// W3C 规范禁止全零的 trace-id/span-id。
func randomHex(n int) string {
	buf := make([]byte, n)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		for _, b := range buf {
			if b != 0 {
				return hex.EncodeToString(buf)
			}
		}
	}
}

// =============================================================================
// Ensure：有则沿用，无则生成
// =============================================================================

// EnsureRequestID 确保 context 中存在 RequestID。
// 已存在时原样返回（不验证/不纠正）。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return WithRequestID(ctx, GenerateRequestID())
}

// EnsureTrace 确保 context 中存在 TraceID、SpanID、RequestID，仅补全缺失字段。
// 适用于请求入口，使当前服务成为链路的起点。
func EnsureTrace(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var tr Trace
	if TraceID(ctx) == "" {
		tr.TraceID = GenerateTraceID()
	}
	if SpanID(ctx) == "" {
		tr.SpanID = GenerateSpanID()
	}
	if RequestID(ctx) == "" {
		tr.RequestID = GenerateRequestID()
	}
	return WithTrace(ctx, tr)
}

// =============================================================================
// Trace 结构体（批量模式）
// =============================================================================

// Trace 追踪信息结构体
type Trace struct {
	TraceID   string
	SpanID    string
	RequestID string
}

// GetTrace 从 context 批量获取追踪信息，字段可能为空字符串。
func GetTrace(ctx context.Context) Trace {
	return Trace{
		TraceID:   TraceID(ctx),
		SpanID:    SpanID(ctx),
		RequestID: RequestID(ctx),
	}
}

// Validate 按 TraceID → SpanID → RequestID 顺序返回第一个缺失字段的哨兵错误。
func (t Trace) Validate() error {
	if t.TraceID == "" {
		return ErrMissingTraceID
	}
	if t.SpanID == "" {
		return ErrMissingSpanID
	}
	if t.RequestID == "" {
		return ErrMissingRequestID
	}
	return nil
}

// WithTrace 将 Trace 中的非空字段批量注入 context。
func WithTrace(ctx context.Context, tr Trace) (context.Context, error) {
	return applyOptionalFields(ctx, []contextFieldSetter{
		{value: tr.TraceID, set: WithTraceID},
		{value: tr.SpanID, set: WithSpanID},
		{value: tr.RequestID, set: WithRequestID},
	})
}
