package xsearch

import "errors"

// 构建与调度错误
var (
	// ErrNilDispatcher 下游 Dispatcher 为 nil
	ErrNilDispatcher = errors.New("xsearch: nil dispatcher")

	// ErrEmptyContextType 构建参数缺少 ContextType
	ErrEmptyContextType = errors.New("xsearch: empty context type")

	// ErrNilConnection ConnectionFactory 返回了 nil 连接
	ErrNilConnection = errors.New("xsearch: connection factory returned nil")

	// ErrNilRequest 请求描述为 nil
	ErrNilRequest = errors.New("xsearch: nil request")

	// ErrClosed 客户端已关闭
	ErrClosed = errors.New("xsearch: client is closed")

	// ErrReadBody 读取响应体失败
	ErrReadBody = errors.New("xsearch: read response body")

	// ErrRawResult 请求以原始响应体返回，无法提供响应信封
	ErrRawResult = errors.New("xsearch: result is a raw body, not an envelope")
)

// 配置解析错误
var (
	ErrNoHosts                 = errors.New("xsearch: no hosts configured")
	ErrInvalidHost             = errors.New("xsearch: invalid host")
	ErrSuperuserForbidden      = errors.New(`xsearch: username "elastic" is a superuser and cannot be used`)
	ErrConflictingCredentials  = errors.New("xsearch: username and service_account_token are mutually exclusive")
	ErrInvalidVerificationMode = errors.New("xsearch: invalid ssl.verification_mode")
	ErrLoadCertificate         = errors.New("xsearch: load certificate")
)
