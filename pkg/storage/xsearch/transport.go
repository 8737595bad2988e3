package xsearch

import "context"

// Dispatcher 执行一次请求。
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request, opts *RequestOptions) (Result, error)
}

// DispatcherFunc 函数适配 Dispatcher。
type DispatcherFunc func(ctx context.Context, req *Request, opts *RequestOptions) (Result, error)

// Dispatch 调用 f。
func (f DispatcherFunc) Dispatch(ctx context.Context, req *Request, opts *RequestOptions) (Result, error) {
	return f(ctx, req, opts)
}

// ContextProvider 从调度 context 推导关联标识，空字符串表示没有。
//
// 每次调度恰好调用一次。同一个 provider 会被并发的请求同时调用，
// 实现必须是并发安全的。xctx.OpaqueIDProvider 是现成实现。
type ContextProvider func(ctx context.Context) string

// NoContextProvider 总是返回空字符串。
func NoContextProvider(context.Context) string { return "" }

// ContextTransport 在每次请求前补全关联标识和 Meta 标志，然后交给下游。
//
//   - 调用方未设置 OpaqueID 且 provider 返回非空值时，设置 OpaqueID
//   - 调用方未设置 Meta 时，设置为 true
//
// 调用方传入的 RequestOptions 不会被修改，下游收到的是副本。
// 下游的结果和错误原样返回。ContextTransport 无可变状态，可被任意 goroutine 共享。
type ContextTransport struct {
	next     Dispatcher
	provider ContextProvider
}

var _ Dispatcher = (*ContextTransport)(nil)

// NewContextTransport 创建 ContextTransport。provider 为 nil 时使用 NoContextProvider。
func NewContextTransport(next Dispatcher, provider ContextProvider) (*ContextTransport, error) {
	if next == nil {
		return nil, ErrNilDispatcher
	}
	if provider == nil {
		provider = NoContextProvider
	}
	return &ContextTransport{next: next, provider: provider}, nil
}

// Dispatch 补全选项后委托给下游。
func (t *ContextTransport) Dispatch(ctx context.Context, req *Request, opts *RequestOptions) (Result, error) {
	var o RequestOptions
	if opts != nil {
		o = *opts
	}

	if id := t.provider(ctx); id != "" && o.OpaqueID == "" {
		o.OpaqueID = id
	}
	if o.Meta == nil {
		o.Meta = Bool(true)
	}

	return t.next.Dispatch(ctx, req, &o)
}
