package xctx

import (
	"context"
	"strings"
)

// KeyOpaqueID opaque_id 日志属性 Key
const KeyOpaqueID = "opaque_id"

const (
	keyOpaqueID  = contextKey("xctx:opaque_id")
	keyExecution = contextKey("xctx:execution")
)

// WithOpaqueID 将关联标识（opaque ID）注入 context。
//
// opaque ID 通常来自入站请求的 X-Opaque-Id 头，随出站的搜索请求透传，
// 用于在搜索引擎侧的慢日志、任务列表中定位发起方。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithOpaqueID(ctx context.Context, opaqueID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyOpaqueID, opaqueID), nil
}

// OpaqueID 从 context 提取 opaque ID，不存在返回空字符串
func OpaqueID(ctx context.Context) string {
	return stringValue(ctx, keyOpaqueID)
}

// RequireOpaqueID 从 context 获取 opaque ID，不存在则返回 ErrMissingOpaqueID。
func RequireOpaqueID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := OpaqueID(ctx)
	if v == "" {
		return "", ErrMissingOpaqueID
	}
	return v, nil
}

// Execution 描述发起请求的业务执行单元，例如某个后台任务或页面。
type Execution struct {
	// Type 执行单元类型，例如 "task"、"dashboard"。
	Type string
	// Name 执行单元名称。
	Name string
	// ID 执行单元实例标识，可为空。
	ID string
}

// IsZero 判断 Execution 是否未设置。
func (e Execution) IsZero() bool {
	return e.Type == "" && e.Name == "" && e.ID == ""
}

// Label 返回 "type:name[:id]" 形式的标签，未设置时返回空字符串。
func (e Execution) Label() string {
	if e.IsZero() {
		return ""
	}
	parts := []string{e.Type, e.Name}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	return strings.Join(parts, ":")
}

// WithExecution 将执行单元信息注入 context。
func WithExecution(ctx context.Context, e Execution) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyExecution, e), nil
}

// GetExecution 从 context 提取执行单元信息，不存在返回零值。
func GetExecution(ctx context.Context) Execution {
	if ctx == nil {
		return Execution{}
	}
	if v, ok := ctx.Value(keyExecution).(Execution); ok {
		return v
	}
	return Execution{}
}

// OpaqueIDProvider 从 context 推导出站请求的关联标识。
//
// 取值顺序：opaque ID → request ID。若 context 中带有 Execution，
// 以 ";" 追加其标签，例如 "req-42;task:reindex:7"。两者都不存在时返回空字符串。
//
// 只读取 context，不修改任何状态，可在多个 goroutine 中并发调用。
func OpaqueIDProvider(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	base := OpaqueID(ctx)
	if base == "" {
		base = RequestID(ctx)
	}
	label := GetExecution(ctx).Label()
	switch {
	case base == "":
		return ""
	case label == "":
		return base
	default:
		return base + ";" + label
	}
}
