package storageopt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xeskit/pkg/observability/xlog"
	"github.com/omeyang/xeskit/pkg/util/xpool"
)

// 默认值
const (
	DefaultAsyncWorkerPoolSize = 10
	DefaultAsyncQueueSize      = 1000
)

// SlowQueryHook 慢查询同步钩子，在请求路径上执行，应保持微秒级。
type SlowQueryHook[T any] func(ctx context.Context, info T)

// AsyncSlowQueryHook 慢查询异步钩子，运行在 worker pool 上。
// 不接收 context：执行时原始请求可能已结束。
type AsyncSlowQueryHook[T any] func(info T)

// SlowQueryOptions 慢查询检测配置。
type SlowQueryOptions[T any] struct {
	// Threshold 为 0 时禁用检测
	Threshold time.Duration
	SyncHook  SlowQueryHook[T]
	// AsyncHook 与 SyncHook 同时设置时两者都会调用
	AsyncHook AsyncSlowQueryHook[T]
	// AsyncWorkerPoolSize 默认 10
	AsyncWorkerPoolSize int
	// AsyncQueueSize 默认 1000，队列满时丢弃通知并计数
	AsyncQueueSize int
	// Logger 记录异步钩子 panic
	Logger xlog.Logger
}

// SlowQueryDetector 慢查询检测器，封装同步/异步钩子调用。
type SlowQueryDetector[T any] struct {
	opts    SlowQueryOptions[T]
	mu      sync.RWMutex
	pool    *xpool.Pool[T]
	closed  bool
	dropped atomic.Int64
}

// NewSlowQueryDetector 创建慢查询检测器。
// AsyncHook 非 nil 时立即创建 worker pool，参数非法时返回错误。
func NewSlowQueryDetector[T any](opts SlowQueryOptions[T]) (*SlowQueryDetector[T], error) {
	if opts.AsyncWorkerPoolSize <= 0 {
		opts.AsyncWorkerPoolSize = DefaultAsyncWorkerPoolSize
	}
	if opts.AsyncQueueSize <= 0 {
		opts.AsyncQueueSize = DefaultAsyncQueueSize
	}

	d := &SlowQueryDetector[T]{opts: opts}
	if opts.AsyncHook != nil {
		pool, err := xpool.New(opts.AsyncWorkerPoolSize, opts.AsyncQueueSize, opts.AsyncHook,
			xpool.WithName("slow-query"), xpool.WithLogger(opts.Logger))
		if err != nil {
			return nil, fmt.Errorf("storageopt: create async pool: %w", err)
		}
		d.pool = pool
	}
	return d, nil
}

// Threshold 返回慢查询阈值
func (d *SlowQueryDetector[T]) Threshold() time.Duration {
	return d.opts.Threshold
}

// MaybeSlowQuery 耗时达到阈值（>=）时触发钩子，返回是否判定为慢查询。
func (d *SlowQueryDetector[T]) MaybeSlowQuery(ctx context.Context, info T, duration time.Duration) bool {
	if d.opts.Threshold <= 0 || duration < d.opts.Threshold {
		return false
	}
	if d.opts.SyncHook != nil {
		d.opts.SyncHook(ctx, info)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.closed && d.pool != nil {
		if err := d.pool.Submit(info); err != nil {
			d.dropped.Add(1)
		}
	}
	return true
}

// Dropped 返回因队列满而丢弃的异步通知数。
func (d *SlowQueryDetector[T]) Dropped() int64 {
	return d.dropped.Load()
}

// Close 关闭检测器并等待已排队的异步钩子执行完毕，可重复调用。
// pool 在锁外排空，并发的 MaybeSlowQuery 不会被阻塞。
func (d *SlowQueryDetector[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	if pool != nil {
		_ = pool.Close() //nolint:errcheck // Background context 下 Close 只返回 nil
	}
}
