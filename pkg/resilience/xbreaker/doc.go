// Package xbreaker 提供基于 [sony/gobreaker/v2] 的熔断器。
//
// # 熔断器状态
//
//   - StateClosed（关闭）：正常状态，请求正常通过
//   - StateOpen（打开）：熔断状态，请求直接失败
//   - StateHalfOpen（半开）：探测状态，允许部分请求通过
//
// # HTTP 传输
//
// [RoundTripper] 把熔断器挂到 http.RoundTripper 链上，传输错误和 5xx 计为失败。
// 搜索客户端在 circuit_breaker.enabled 时用它包装底层 *http.Transport：
//
//	b := xbreaker.NewBreaker("elasticsearch",
//	    xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(5)),
//	    xbreaker.WithTimeout(30*time.Second),
//	)
//	rt, err := xbreaker.NewRoundTripper(transport, b)
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
