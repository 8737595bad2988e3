package xctx

import "context"

type contextFieldSetter struct {
	value string
	set   func(context.Context, string) (context.Context, error)
}

// applyOptionalFields 依次注入非空字段，空值跳过。
// 父 context 中已存在的字段因此会被保留，入口层设置的值不会被后续层清空。
func applyOptionalFields(ctx context.Context, fields []contextFieldSetter) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		var err error
		if ctx, err = field.set(ctx, field.value); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}
