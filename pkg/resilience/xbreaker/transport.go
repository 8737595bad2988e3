package xbreaker

import (
	"errors"
	"net/http"
)

// errServerStatus 5xx 响应在熔断器内部记为失败，不会返回给调用方。
var errServerStatus = errors.New("xbreaker: server error status")

// RoundTripper 受熔断器保护的 http.RoundTripper。
//
// 传输错误与 5xx 响应计为失败；5xx 响应本身仍原样返回给调用方。
// 熔断打开时不发起请求，直接返回 *BreakerError。
type RoundTripper struct {
	next    http.RoundTripper
	breaker *Breaker
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// NewRoundTripper 创建 RoundTripper，next 为 nil 时使用 http.DefaultTransport。
func NewRoundTripper(next http.RoundTripper, b *Breaker) (*RoundTripper, error) {
	if b == nil {
		return nil, ErrNilBreaker
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &RoundTripper{next: next, breaker: b}, nil
}

// RoundTrip 实现 http.RoundTripper。
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.breaker.Do(req.Context(), func() error {
		r, err := t.next.RoundTrip(req)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})
	if err != nil && !errors.Is(err, errServerStatus) {
		return nil, err
	}
	return resp, nil
}

// Breaker 返回底层熔断器。
func (t *RoundTripper) Breaker() *Breaker {
	return t.breaker
}
