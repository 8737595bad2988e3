package xsearch

import (
	"context"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xeskit/internal/storageopt"
	"github.com/omeyang/xeskit/pkg/observability/xlog"
	"github.com/omeyang/xeskit/pkg/observability/xmetrics"
)

// =============================================================================
// 慢查询信息
// =============================================================================

// SlowQueryInfo 慢查询详细信息。
type SlowQueryInfo struct {
	ContextType string
	Method      string
	// Path 含编码后的查询参数。
	Path       string
	StatusCode int
	OpaqueID   string
	Duration   time.Duration
}

// SlowQueryHook 慢查询同步回调钩子，在请求路径上执行。
//
// 钩子耗时直接叠加到请求延迟上，避免在其中做网络或磁盘 IO。
// 复杂场景使用 AsyncSlowQueryHook。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// AsyncSlowQueryHook 慢查询异步回调钩子，通过内部 worker pool 执行。
// 与 SlowQueryHook 同时设置时两者都会被调用。
type AsyncSlowQueryHook func(info SlowQueryInfo)

// =============================================================================
// 扩展点
// =============================================================================

// ConnectionFactory 根据解析后的参数创建底层连接。
type ConnectionFactory func(opts ClientOptions) (elastictransport.Interface, error)

// InstrumentFunc 在客户端构建完成后调用一次，用于挂载日志等观察者。
type InstrumentFunc func(c *Client, logger xlog.Logger, contextType string)

// =============================================================================
// 配置选项
// =============================================================================

// Options 客户端构建选项。
type Options struct {
	// Parser 配置解析器，默认 ParseClientOptions。
	Parser ParseFunc

	// ConnectionFactory 默认基于 elastictransport 创建连接。
	ConnectionFactory ConnectionFactory

	// Instrument 默认 InstrumentQueryAndDeprecationLogger。
	Instrument InstrumentFunc

	// Logger 默认 xlog.Nop()。
	Logger xlog.Logger

	// Observer 统一观测接口（metrics/tracing），默认 NoopObserver。
	Observer xmetrics.Observer

	// TracerProvider 非 nil 时为底层连接启用 elastictransport 的 OpenTelemetry 埋点。
	TracerProvider trace.TracerProvider

	// SlowQueryThreshold 为 0 时禁用慢查询检测。
	SlowQueryThreshold      time.Duration
	SlowQueryHook           SlowQueryHook
	AsyncSlowQueryHook      AsyncSlowQueryHook
	AsyncSlowQueryWorkers   int
	AsyncSlowQueryQueueSize int

	// MaxLoggedBody 查询日志中请求体的最大字节数，默认 DefaultMaxLoggedBody。
	MaxLoggedBody int

	// ReadyAttempts WaitReady 的最大探测次数，默认 DefaultReadyAttempts。
	ReadyAttempts uint
	// ReadyDelay WaitReady 的初始退避间隔，按指数增长至 ReadyMaxDelay。
	ReadyDelay    time.Duration
	ReadyMaxDelay time.Duration
}

// Option 配置客户端的函数类型。
type Option func(*Options)

// 默认值
const (
	DefaultAsyncSlowQueryWorkers   = storageopt.DefaultAsyncWorkerPoolSize
	DefaultAsyncSlowQueryQueueSize = storageopt.DefaultAsyncQueueSize
	DefaultMaxLoggedBody           = 4 << 10
	DefaultReadyAttempts           = 10
	DefaultReadyDelay              = 200 * time.Millisecond
	DefaultReadyMaxDelay           = 5 * time.Second
)

func defaultOptions() *Options {
	return &Options{
		Parser:                  ParseClientOptions,
		Instrument:              InstrumentQueryAndDeprecationLogger,
		Logger:                  xlog.Nop(),
		Observer:                xmetrics.NoopObserver{},
		AsyncSlowQueryWorkers:   DefaultAsyncSlowQueryWorkers,
		AsyncSlowQueryQueueSize: DefaultAsyncSlowQueryQueueSize,
		MaxLoggedBody:           DefaultMaxLoggedBody,
		ReadyAttempts:           DefaultReadyAttempts,
		ReadyDelay:              DefaultReadyDelay,
		ReadyMaxDelay:           DefaultReadyMaxDelay,
	}
}

// WithParser 替换配置解析器，nil 被忽略。
func WithParser(p ParseFunc) Option {
	return func(o *Options) {
		if p != nil {
			o.Parser = p
		}
	}
}

// WithConnectionFactory 替换底层连接工厂，常用于测试。
func WithConnectionFactory(f ConnectionFactory) Option {
	return func(o *Options) {
		if f != nil {
			o.ConnectionFactory = f
		}
	}
}

// WithInstrumenter 替换构建后的埋点钩子。
func WithInstrumenter(f InstrumentFunc) Option {
	return func(o *Options) {
		if f != nil {
			o.Instrument = f
		}
	}
}

// WithLogger 设置日志，nil 被忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置统一观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithTracerProvider 为底层连接启用 OpenTelemetry 埋点。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithSlowQueryThreshold 设置慢查询阈值，0 禁用，负值被忽略。
func WithSlowQueryThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		if threshold >= 0 {
			o.SlowQueryThreshold = threshold
		}
	}
}

// WithSlowQueryHook 设置慢查询同步回调钩子。
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(o *Options) {
		o.SlowQueryHook = hook
	}
}

// WithAsyncSlowQueryHook 设置慢查询异步回调钩子。
func WithAsyncSlowQueryHook(hook AsyncSlowQueryHook) Option {
	return func(o *Options) {
		o.AsyncSlowQueryHook = hook
	}
}

// WithAsyncSlowQueryWorkers 设置异步慢查询 worker 数量。
func WithAsyncSlowQueryWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.AsyncSlowQueryWorkers = n
		}
	}
}

// WithAsyncSlowQueryQueueSize 设置异步慢查询队列大小。
func WithAsyncSlowQueryQueueSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.AsyncSlowQueryQueueSize = n
		}
	}
}

// WithMaxLoggedBody 设置查询日志中请求体的截断长度，0 表示不记录请求体。
func WithMaxLoggedBody(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxLoggedBody = n
		}
	}
}

// WithReadyRetry 设置 WaitReady 的重试策略，非正值保持默认。
func WithReadyRetry(attempts uint, delay, maxDelay time.Duration) Option {
	return func(o *Options) {
		if attempts > 0 {
			o.ReadyAttempts = attempts
		}
		if delay > 0 {
			o.ReadyDelay = delay
		}
		if maxDelay > 0 {
			o.ReadyMaxDelay = maxDelay
		}
	}
}
