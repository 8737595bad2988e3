package xsearch

import (
	"context"
	"log/slog"

	"github.com/omeyang/xeskit/pkg/observability/xlog"
)

// 日志名称
const (
	QueryLoggerPrefix     = "elasticsearch.query."
	DeprecationLoggerName = "elasticsearch.deprecation"
)

// InstrumentQueryAndDeprecationLogger 默认埋点：查询日志与弃用警告日志。
//
//   - 每个请求在 elasticsearch.query.<contextType> 上记一条 Debug，失败时带上错误
//   - 耗时达到慢查询阈值时在同一 logger 上追加一条 Warn
//   - 响应的 Warning 头写入 elasticsearch.deprecation；请求未携带
//     X-Elastic-Product-Origin 时为 Info，否则为 Debug
//
// 观察者不会改变请求结果。
func InstrumentQueryAndDeprecationLogger(c *Client, logger xlog.Logger, contextType string) {
	if c == nil {
		return
	}
	queryLog := xlog.Named(logger, QueryLoggerPrefix+contextType)
	deprecationLog := xlog.Named(logger, DeprecationLoggerName)
	maxBody := c.opts.MaxLoggedBody

	c.OnResponse(func(ctx context.Context, ev *ResponseEvent) {
		logQuery(ctx, queryLog, ev, maxBody)
		logDeprecations(ctx, deprecationLog, ev)
	})
}

func logQuery(ctx context.Context, logger xlog.Logger, ev *ResponseEvent, maxBody int) {
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs,
		xlog.Method(ev.Request.Method),
		xlog.Path(ev.Request.pathWithQuery()),
		xlog.Duration(ev.Duration),
	)
	if status := ev.StatusCode(); status != 0 {
		attrs = append(attrs, xlog.StatusCode(status))
	}
	if ev.Options.OpaqueID != "" {
		attrs = append(attrs, slog.String(xlog.KeyOpaqueID, ev.Options.OpaqueID))
	}
	if maxBody > 0 && len(ev.Request.Body) > 0 && debugEnabled(ctx, logger) {
		attrs = append(attrs, slog.String("body", truncate(ev.Request.Body, maxBody)))
	}

	if ev.Err != nil {
		logger.Debug(ctx, "search request failed", append(attrs, xlog.Err(ev.Err))...)
	} else {
		logger.Debug(ctx, "search request", attrs...)
	}
	if ev.Slow {
		logger.Warn(ctx, "slow search request", attrs...)
	}
}

func logDeprecations(ctx context.Context, logger xlog.Logger, ev *ResponseEvent) {
	if ev.Response == nil || len(ev.Response.Warnings) == 0 {
		return
	}
	fromProduct := ev.Response.Meta.Request.Headers.Get(HeaderProductOrigin) != ""
	for _, w := range ev.Response.Warnings {
		attrs := []slog.Attr{
			slog.String("warning", w),
			xlog.Method(ev.Request.Method),
			xlog.Path(ev.Request.pathWithQuery()),
		}
		if fromProduct {
			logger.Debug(ctx, "deprecated search api used", attrs...)
		} else {
			logger.Info(ctx, "deprecated search api used", attrs...)
		}
	}
}

// debugEnabled logger 不支持级别查询时按启用处理。
func debugEnabled(ctx context.Context, logger xlog.Logger) bool {
	lv, ok := logger.(xlog.Leveler)
	return !ok || lv.Enabled(ctx, xlog.LevelDebug)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
