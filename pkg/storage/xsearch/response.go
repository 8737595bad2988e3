package xsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Result 调度结果，只有 *Response 与 RawBody 两种实现。
type Result interface {
	isResult()
}

// RequestMeta 记录实际发出的请求。
type RequestMeta struct {
	Method   string
	Path     string
	Query    string
	OpaqueID string
	Headers  http.Header
}

// Meta 响应信封的元数据。
type Meta struct {
	Request  RequestMeta
	Duration time.Duration
}

// Response 规范化的响应信封。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Warnings 响应中的 Warning 头，通常是弃用提示。
	Warnings []string
	Meta     Meta
}

func (*Response) isResult() {}

// RawBody 未包装的原始响应体。
type RawBody []byte

func (RawBody) isResult() {}

// AsResponse 若 r 是响应信封则返回它。
func AsResponse(r Result) (*Response, bool) {
	resp, ok := r.(*Response)
	return resp, ok && resp != nil
}

// Bytes 返回响应体，无论是否包装。
func Bytes(r Result) []byte {
	switch v := r.(type) {
	case *Response:
		if v == nil {
			return nil
		}
		return v.Body
	case RawBody:
		return v
	default:
		return nil
	}
}

// ResponseError 状态码 >= 400 且未被忽略时返回，携带完整信封。
//
//	var re *xsearch.ResponseError
//	if errors.As(err, &re) && re.Response.StatusCode == http.StatusNotFound { ... }
type ResponseError struct {
	Response *Response
	// Type 与 Reason 取自响应体 {"error":{"type":..,"reason":..}}，解析失败时为空。
	Type   string
	Reason string
}

func newResponseError(resp *Response) *ResponseError {
	re := &ResponseError{Response: resp}
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(resp.Body, &body) != nil || len(body.Error) == 0 {
		return re
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body.Error, &detail) == nil {
		re.Type, re.Reason = detail.Type, detail.Reason
		return re
	}
	// 部分端点的 error 是字符串
	var s string
	if json.Unmarshal(body.Error, &s) == nil {
		re.Reason = s
	}
	return re
}

func (e *ResponseError) Error() string {
	status := 0
	if e.Response != nil {
		status = e.Response.StatusCode
	}
	switch {
	case e.Type != "":
		return fmt.Sprintf("xsearch: status %d: [%s] %s", status, e.Type, e.Reason)
	case e.Reason != "":
		return fmt.Sprintf("xsearch: status %d: %s", status, e.Reason)
	default:
		return fmt.Sprintf("xsearch: status %d", status)
	}
}

// StatusCode 返回响应状态码。
func (e *ResponseError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

func asResponseError(err error) (*ResponseError, bool) {
	var re *ResponseError
	if errors.As(err, &re) && re != nil {
		return re, true
	}
	return nil, false
}
