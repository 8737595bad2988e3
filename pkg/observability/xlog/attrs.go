package xlog

import (
	"io"
	"log/slog"
	"time"

	"github.com/omeyang/xeskit/pkg/context/xctx"
)

// 常用属性 Key
const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyLogger     = "logger"
	KeyService    = "service"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
	KeyOpaqueID   = xctx.KeyOpaqueID
)

// Err 创建错误属性，err 为 nil 时返回空属性（slog 会忽略）
//
//	if err != nil {
//	    logger.Error(ctx, "search failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出人类可读格式（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// StatusCode HTTP 状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// Method HTTP 方法属性
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Path 请求路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Named 返回带 logger 名称属性的派生 Logger，例如 "elasticsearch.query.data"。
// l 为 nil 时返回 Nop。
func Named(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	if name == "" {
		return l
	}
	return l.With(slog.String(KeyLogger, name))
}

// Nop 返回丢弃所有输出的 Logger，常用于未配置日志的组件和测试。
func Nop() Logger {
	return nopLogger
}

var nopLogger Logger = newXLogger(
	slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1 << 10)}),
	new(slog.LevelVar), nil, false,
)
