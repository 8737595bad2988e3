package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// ErrNilBreaker 传入的 Breaker 为 nil
var ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")

// BreakerError 熔断器拒绝执行时返回的错误。
//
// Err 是 gobreaker.ErrOpenState 或 gobreaker.ErrTooManyRequests。
// 字段导出，便于在日志和告警中直接读取。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

// Error 实现 error 接口
func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 实现 errors.Unwrap 接口
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 熔断错误不应重试。
func (e *BreakerError) Retryable() bool {
	return false
}

// wrapBreakerError 只包装直接的 sentinel error，已是 BreakerError 的原样返回。
// 状态由错误类型推导，不再查询 State()。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}
	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}
	switch err { //nolint:errorlint // 只匹配本熔断器直接返回的 sentinel
	case gobreaker.ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case gobreaker.ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 检查错误是否是熔断器打开错误
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开状态下请求过多
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 检查错误是否由熔断器产生，用于区分熔断与业务错误。
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
