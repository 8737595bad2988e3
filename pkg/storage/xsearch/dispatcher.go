package xsearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
)

const (
	mimeJSON       = "application/json"
	instrumentName = "elasticsearch"
)

// httpDispatcher 把 Request 映射为 HTTP 请求并交给底层连接。
type httpDispatcher struct {
	conn elastictransport.Interface
	// headers 客户端默认头，同名时调用方的头优先
	headers http.Header
	// timeout request_timeout，覆盖响应头与响应体读取
	timeout time.Duration
}

var _ Dispatcher = (*httpDispatcher)(nil)

func newHTTPDispatcher(conn elastictransport.Interface, headers http.Header, timeout time.Duration) (*httpDispatcher, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	return &httpDispatcher{conn: conn, headers: headers.Clone(), timeout: timeout}, nil
}

// Dispatch 发送请求。Meta 为 true 时返回 *Response，否则返回 RawBody。
// 状态码 >= 400 且不在 IgnoreStatus 中时返回 *ResponseError。
func (d *httpDispatcher) Dispatch(ctx context.Context, req *Request, opts *RequestOptions) (Result, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	if timeout := orDuration(opts.Timeout, d.timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := endpointName(req.Path)
	inst := d.instrumentation()
	if inst != nil {
		ctx = inst.Start(ctx, endpoint)
		defer inst.Close(ctx)
	}

	hreq, err := newHTTPRequest(ctx, req, opts, d.headers)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		if len(req.Body) > 0 {
			if rc := inst.RecordRequestBody(ctx, endpoint, bytes.NewReader(req.Body)); rc != nil {
				_ = rc.Close() //nolint:errcheck // 内存 reader
			}
		}
		inst.BeforeRequest(hreq, endpoint)
	}

	// 连接层会在 Perform 中写入认证头，先保留调用方视角的请求头
	sent := hreq.Header.Clone()
	start := time.Now()
	res, err := d.conn.Perform(hreq)
	if inst != nil {
		inst.AfterRequest(hreq, instrumentName, endpoint)
	}
	if err != nil {
		if inst != nil {
			inst.RecordError(ctx, err)
		}
		return nil, err
	}

	body, err := io.ReadAll(res.Body)
	_ = res.Body.Close() //nolint:errcheck // 已读完
	if err != nil {
		if inst != nil {
			inst.RecordError(ctx, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrReadBody, err)
	}

	resp := &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
		Warnings:   res.Header.Values(HeaderWarning),
		Meta: Meta{
			Request: RequestMeta{
				Method:   hreq.Method,
				Path:     req.Path,
				Query:    hreq.URL.RawQuery,
				OpaqueID: opts.OpaqueID,
				Headers:  sent,
			},
			Duration: time.Since(start),
		},
	}

	if resp.StatusCode >= http.StatusBadRequest && !opts.ignores(resp.StatusCode) {
		re := newResponseError(resp)
		if inst != nil {
			inst.RecordError(ctx, re)
		}
		return nil, re
	}
	if opts.metaEnabled() {
		return resp, nil
	}
	return RawBody(body), nil
}

func (d *httpDispatcher) instrumentation() elastictransport.Instrumentation {
	if i, ok := d.conn.(elastictransport.Instrumented); ok {
		return i.InstrumentationEnabled()
	}
	return nil
}

// newHTTPRequest 构建相对 URL 的请求，scheme 与 host 由连接池补全。
func newHTTPRequest(ctx context.Context, req *Request, opts *RequestOptions, defaults http.Header) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, "/", body)
	if err != nil {
		return nil, fmt.Errorf("xsearch: build request: %w", err)
	}
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	hreq.URL.Path = path
	hreq.URL.RawQuery = req.Query.Encode()

	hreq.Header.Set("Accept", mimeJSON)
	if body != nil {
		hreq.Header.Set("Content-Type", mimeJSON)
	}
	for k, vs := range defaults {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range opts.Headers {
		hreq.Header.Del(k)
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if opts.OpaqueID != "" {
		hreq.Header.Set(HeaderOpaqueID, opts.OpaqueID)
	}
	return hreq, nil
}

// endpointName 从路径推导埋点用的端点名，例如 "/logs/_search" 为 "search"。
func endpointName(path string) string {
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if strings.HasPrefix(seg, "_") && len(seg) > 1 {
			return strings.TrimPrefix(seg, "_")
		}
	}
	if strings.Trim(path, "/") == "" {
		return "info"
	}
	return "request"
}

// =============================================================================
// 事件分发
// =============================================================================

// ResponseEvent 一次调度结束后的事件，交给 ResponseObserver。
type ResponseEvent struct {
	ContextType string
	Request     *Request
	// Options 经 ContextTransport 补全后的选项。
	Options RequestOptions
	// Response 收到响应时非 nil，包括 >= 400 的响应。传输错误时为 nil。
	Response *Response
	Err      error
	Duration time.Duration
	// Slow 耗时达到慢查询阈值。
	Slow bool
}

// StatusCode 返回响应状态码，未收到响应时为 0。
func (e *ResponseEvent) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// ResponseObserver 在每次调度结束后同步调用，不能影响请求结果。
type ResponseObserver func(ctx context.Context, ev *ResponseEvent)

// eventDispatcher 计时并通知观察者。
//
// 下游总是以信封模式调用，观察者能看到状态码和 Warning 头；
// 调用方要求原始响应体时再拆开。
type eventDispatcher struct {
	next   Dispatcher
	notify func(ctx context.Context, ev *ResponseEvent)
}

var _ Dispatcher = (*eventDispatcher)(nil)

func (d *eventDispatcher) Dispatch(ctx context.Context, req *Request, opts *RequestOptions) (Result, error) {
	var o RequestOptions
	if opts != nil {
		o = *opts
	}
	wantMeta := o.metaEnabled()
	inner := o
	inner.Meta = Bool(true)

	start := time.Now()
	res, err := d.next.Dispatch(ctx, req, &inner)
	ev := &ResponseEvent{
		Request:  req,
		Options:  o,
		Err:      err,
		Duration: time.Since(start),
	}
	if resp, ok := AsResponse(res); ok {
		ev.Response = resp
	} else if re, ok := asResponseError(err); ok {
		ev.Response = re.Response
	}
	d.notify(ctx, ev)

	if err != nil {
		return nil, err
	}
	if resp, ok := AsResponse(res); ok && !wantMeta {
		return RawBody(resp.Body), nil
	}
	return res, nil
}
