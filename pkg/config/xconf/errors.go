package xconf

import "errors"

var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")
	ErrLoadFailed        = errors.New("xconf: failed to load config")
	ErrParseFailed       = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed   = errors.New("xconf: failed to unmarshal config")
	ErrReloadUnsupported = errors.New("xconf: cannot reload config created from bytes")
	// ErrEnvFailed 环境变量覆盖失败（格式错误或必填变量缺失）
	ErrEnvFailed = errors.New("xconf: failed to apply environment")
)
