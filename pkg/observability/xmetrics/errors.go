package xmetrics

import "errors"

// NewOTelObserver 返回的错误。
var (
	ErrCreateCounter   = errors.New("xmetrics: create counter failed")
	ErrCreateHistogram = errors.New("xmetrics: create histogram failed")
	// ErrInvalidBuckets 桶边界为空或非严格递增
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")
	ErrNilOption      = errors.New("xmetrics: nil option")
)
