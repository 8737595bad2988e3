package xsearch

import (
	"net/http"
	"net/url"
	"slices"
	"time"
)

// Request 一次搜索引擎请求的描述，由调用方按调用创建，传输层不会修改。
type Request struct {
	Method string
	// Path 以 "/" 开头，不含 scheme 与 host，例如 "/logs-*/_search"。
	Path  string
	Query url.Values
	Body  []byte
}

// RequestOptions 单次请求的选项。
//
// 零值字段表示"未设置"，ContextTransport 只补全未设置的字段，不覆盖已设置的值。
type RequestOptions struct {
	// Timeout 单次请求超时，覆盖 request_timeout，0 表示使用 request_timeout。
	Timeout time.Duration

	// Headers 附加请求头，优先级高于客户端默认头。
	Headers http.Header

	// OpaqueID 关联标识，以 X-Opaque-Id 头发送。
	OpaqueID string

	// Meta 三态：nil 未设置，true 返回 *Response 信封，false 返回 RawBody。
	Meta *bool

	// IgnoreStatus 这些状态码即使 >= 400 也不视为错误，例如 404。
	IgnoreStatus []int
}

// Bool 返回 v 的指针，便于设置 RequestOptions.Meta。
func Bool(v bool) *bool { return &v }

// metaEnabled 报告是否要求返回响应信封。
func (o *RequestOptions) metaEnabled() bool {
	return o != nil && o.Meta != nil && *o.Meta
}

// ignores 报告 status 是否在 IgnoreStatus 中。
func (o *RequestOptions) ignores(status int) bool {
	return o != nil && slices.Contains(o.IgnoreStatus, status)
}

// pathWithQuery 返回 "path?query" 形式，用于日志。
func (r *Request) pathWithQuery() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}
