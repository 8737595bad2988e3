package xctx

import (
	"context"
	"log/slog"
)

// AppendTraceAttrs 将 context 中的追踪信息追加到现有切片，只追加非空字段。
// 调用方传入预分配切片以避免热路径分配。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := SpanID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySpanID, v))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := OpaqueID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyOpaqueID, v))
	}
	return attrs
}

// LogAttrs 从 context 提取所有上下文信息，转换为 slog.Attr 切片。
// 没有任何字段时返回 nil。
func LogAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs := AppendTraceAttrs(make([]slog.Attr, 0, traceFieldCount+1), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
