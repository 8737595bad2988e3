package xpool

import "github.com/omeyang/xeskit/pkg/observability/xlog"

// Option Pool 可选配置
type Option func(*options)

type options struct {
	logger xlog.Logger
	name   string
}

// WithLogger 设置日志记录器，默认 xlog.Nop()，nil 忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 pool 名称，多实例时区分日志来源。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
