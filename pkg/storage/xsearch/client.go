package xsearch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	retry "github.com/avast/retry-go/v5"
	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xeskit/internal/storageopt"
	"github.com/omeyang/xeskit/pkg/observability/xlog"
	"github.com/omeyang/xeskit/pkg/observability/xmetrics"
)

const componentName = "xsearch"

// BuildParams 构建参数。
type BuildParams struct {
	// ContextType 逻辑客户端类型，例如 "admin"、"data"，用于日志命名。不能为空。
	ContextType string
	// Scoped 作用域客户端不携带账号凭据。
	Scoped bool
	// ContextProvider 为 nil 时不注入关联标识。
	ContextProvider ContextProvider
}

// Stats 客户端统计。
type Stats struct {
	Queries     int64
	QueryErrors int64
	SlowQueries int64
	// SlowDropped 异步慢查询队列满被丢弃的通知数。
	SlowDropped int64
	Pings       int64
	PingErrors  int64
}

// Client 带关联标识注入的搜索引擎客户端，可被多个 goroutine 并发使用。
type Client struct {
	contextType string
	clientOpts  ClientOptions
	opts        *Options

	conn      elastictransport.Interface
	transport *ContextTransport

	obsMu     sync.RWMutex
	observers []ResponseObserver

	// closeMu 读锁覆盖一次请求，Close 取写锁等待进行中的请求结束
	closeMu sync.RWMutex
	closed  bool

	health    storageopt.HealthCounter
	queries   storageopt.QueryCounter
	slowCount storageopt.SlowQueryCounter
	slow      *storageopt.SlowQueryDetector[SlowQueryInfo]

	ready singleflight.Group
	// lifetime 在 Close 时取消，终止进行中的 WaitReady 轮询
	lifetime     context.Context
	stopLifetime context.CancelFunc
}

// Build 组装客户端：解析配置 → 创建连接 → 串起调度链 → 挂载埋点。
//
//	client, err := xsearch.Build(cfg, xsearch.BuildParams{
//	    ContextType:     "data",
//	    ContextProvider: xctx.OpaqueIDProvider,
//	}, xsearch.WithLogger(logger))
//
// 解析器与连接工厂返回的错误原样返回。
func Build(cfg Config, params BuildParams, opts ...Option) (*Client, error) {
	if params.ContextType == "" {
		return nil, ErrEmptyContextType
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.ConnectionFactory == nil {
		o.ConnectionFactory = newConnectionFactory(o)
	}

	clientOpts, err := o.Parser(cfg, params.Scoped)
	if err != nil {
		return nil, err
	}

	conn, err := o.ConnectionFactory(clientOpts)
	if err != nil {
		return nil, err
	}

	c, err := newClient(params, clientOpts, conn, o)
	if err != nil {
		closeIdle(conn)
		return nil, err
	}

	if clientOpts.SniffOnStart {
		c.sniff()
	}

	o.Instrument(c, o.Logger, params.ContextType)
	return c, nil
}

func newClient(params BuildParams, clientOpts ClientOptions, conn elastictransport.Interface, o *Options) (*Client, error) {
	httpD, err := newHTTPDispatcher(conn, clientOpts.Headers, clientOpts.RequestTimeout)
	if err != nil {
		return nil, err
	}

	slow, err := storageopt.NewSlowQueryDetector(storageopt.SlowQueryOptions[SlowQueryInfo]{
		Threshold:           o.SlowQueryThreshold,
		SyncHook:            storageopt.SlowQueryHook[SlowQueryInfo](o.SlowQueryHook),
		AsyncHook:           asyncHook(o.AsyncSlowQueryHook),
		AsyncWorkerPoolSize: o.AsyncSlowQueryWorkers,
		AsyncQueueSize:      o.AsyncSlowQueryQueueSize,
		Logger:              o.Logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		contextType: params.ContextType,
		clientOpts:  clientOpts,
		opts:        o,
		conn:        conn,
		slow:        slow,
	}
	c.lifetime, c.stopLifetime = context.WithCancel(context.Background())

	transport, err := NewContextTransport(&eventDispatcher{next: httpD, notify: c.notify}, params.ContextProvider)
	if err != nil {
		c.stopLifetime()
		slow.Close()
		return nil, err
	}
	c.transport = transport
	return c, nil
}

func asyncHook(h AsyncSlowQueryHook) storageopt.AsyncSlowQueryHook[SlowQueryInfo] {
	if h == nil {
		return nil
	}
	return storageopt.AsyncSlowQueryHook[SlowQueryInfo](h)
}

// sniff 启动时发现节点，失败只记录日志。
func (c *Client) sniff() {
	d, ok := c.conn.(elastictransport.Discoverable)
	if !ok {
		return
	}
	if err := d.DiscoverNodes(); err != nil {
		c.opts.Logger.Warn(context.Background(), "sniff on start failed",
			xlog.Component(componentName), xlog.Err(err))
	}
}

// Perform 通过 ContextTransport 发送请求。
//
// 未显式设置 opts.Meta 时返回 *Response；状态码 >= 400 且未被忽略时返回 *ResponseError。
func (c *Client) Perform(ctx context.Context, req *Request, opts *RequestOptions) (result Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, ErrNilRequest
	}
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, c.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "perform",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String(xmetrics.AttrContextType, c.contextType),
			xmetrics.String(xmetrics.AttrMethod, req.Method),
			xmetrics.String(xmetrics.AttrPath, req.Path),
		},
	})
	defer func() {
		var attrs []xmetrics.Attr
		if resp, ok := AsResponse(result); ok {
			attrs = append(attrs, xmetrics.Int(xmetrics.AttrStatusCode, resp.StatusCode))
		} else if re, ok := asResponseError(err); ok {
			attrs = append(attrs, xmetrics.Int(xmetrics.AttrStatusCode, re.StatusCode()))
		}
		span.End(xmetrics.Result{Err: err, Attrs: attrs})
	}()

	return c.transport.Dispatch(ctx, req, opts)
}

// Do 发送请求并要求返回响应信封。opts.Meta 被显式设为 false 时返回 ErrRawResult。
func (c *Client) Do(ctx context.Context, req *Request, opts *RequestOptions) (*Response, error) {
	res, err := c.Perform(ctx, req, opts)
	if err != nil {
		return nil, err
	}
	resp, ok := AsResponse(res)
	if !ok {
		return nil, ErrRawResult
	}
	return resp, nil
}

// Health 发送 HEAD / 检查集群可达，受 ping_timeout 约束。
func (c *Client) Health(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.health.IncPing()
	hctx, cancel := storageopt.HealthContext(ctx, c.clientOpts.PingTimeout)
	defer cancel()

	_, err := c.Perform(hctx, &Request{Method: http.MethodHead, Path: "/"},
		&RequestOptions{Timeout: c.clientOpts.PingTimeout})
	if err != nil {
		c.health.IncPingError()
		return err
	}
	return nil
}

// WaitReady 轮询 Health 直到成功、ctx 结束或重试次数耗尽。
//
// 并发调用合并为一次轮询。轮询不随发起者的 ctx 取消，只受重试次数与 Close 约束，
// 每个调用方按自己的 ctx 返回。
func (c *Client) WaitReady(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := c.ready.DoChan("ready", func() (any, error) {
		probeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(c.lifetime, cancel)
		defer stop()
		return nil, c.waitReady(probeCtx)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) waitReady(ctx context.Context) error {
	logger := xlog.Named(c.opts.Logger, "elasticsearch."+c.contextType)
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(c.opts.ReadyAttempts),
		retry.Delay(c.opts.ReadyDelay),
		retry.MaxDelay(c.opts.ReadyMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrClosed)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug(ctx, "cluster not ready",
				xlog.Component(componentName), slog.Uint64("attempt", uint64(n)), xlog.Err(err))
		}),
	).Do(func() error {
		return c.Health(ctx)
	})
}

// OnResponse 注册响应观察者，每次调度结束后按注册顺序同步调用。
func (c *Client) OnResponse(obs ResponseObserver) {
	if obs == nil {
		return
	}
	c.obsMu.Lock()
	c.observers = append(c.observers, obs)
	c.obsMu.Unlock()
}

func (c *Client) notify(ctx context.Context, ev *ResponseEvent) {
	ev.ContextType = c.contextType

	c.queries.IncQuery()
	if ev.Err != nil {
		c.queries.IncQueryError()
	}

	info := SlowQueryInfo{
		ContextType: c.contextType,
		Method:      ev.Request.Method,
		Path:        ev.Request.pathWithQuery(),
		StatusCode:  ev.StatusCode(),
		OpaqueID:    ev.Options.OpaqueID,
		Duration:    ev.Duration,
	}
	if c.slow.MaybeSlowQuery(ctx, info, ev.Duration) {
		ev.Slow = true
		c.slowCount.Inc()
	}

	c.obsMu.RLock()
	observers := c.observers
	c.obsMu.RUnlock()
	for _, obs := range observers {
		c.safeObserve(ctx, obs, ev)
	}
}

// safeObserve 观察者 panic 不影响请求结果。
func (c *Client) safeObserve(ctx context.Context, obs ResponseObserver, ev *ResponseEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Stack(ctx, "response observer panicked",
				xlog.Component(componentName), slog.Any("panic", r))
		}
	}()
	obs(ctx, ev)
}

// ContextType 返回构建时的逻辑类型。
func (c *Client) ContextType() string {
	return c.contextType
}

// Options 返回解析后的连接参数。
func (c *Client) Options() ClientOptions {
	return c.clientOpts
}

// Connection 返回底层连接。
func (c *Client) Connection() elastictransport.Interface {
	return c.conn
}

// TransportMetrics 返回底层连接的请求统计，连接不支持时返回错误。
func (c *Client) TransportMetrics() (elastictransport.Metrics, error) {
	m, ok := c.conn.(interface {
		Metrics() (elastictransport.Metrics, error)
	})
	if !ok {
		return elastictransport.Metrics{}, errors.New("xsearch: connection does not expose metrics")
	}
	return m.Metrics()
}

// Stats 返回客户端统计快照。
func (c *Client) Stats() Stats {
	return Stats{
		Queries:     c.queries.QueryCount(),
		QueryErrors: c.queries.QueryErrors(),
		SlowQueries: c.slowCount.Count(),
		SlowDropped: c.slow.Dropped(),
		Pings:       c.health.PingCount(),
		PingErrors:  c.health.PingErrors(),
	}
}

// Close 拒绝新请求，等待进行中的请求结束，并排空异步慢查询钩子。
// 重复调用返回 ErrClosed。
func (c *Client) Close() error {
	c.stopLifetime()
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.closeMu.Unlock()

	c.slow.Close()
	closeIdle(c.conn)
	return nil
}

func closeIdle(conn elastictransport.Interface) {
	if cl, ok := conn.(interface{ CloseIdleConnections() }); ok {
		cl.CloseIdleConnections()
	}
}
