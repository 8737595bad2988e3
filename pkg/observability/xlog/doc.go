// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// Builder 模式（first-error-wins）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetService("search-gateway").
//		Build()
//	if err != nil { ... }
//	defer cleanup()
//
// Builder 方法：SetLevel、SetLevelString、SetFormat、SetOutput、SetRotation、
// SetEnrich、SetService、SetOnError、SetReplaceAttr、SetAddSource。
//
// # Context 注入
//
// 默认启用 [EnrichHandler]，从 context 提取 trace_id、span_id、request_id、opaque_id。
//
// # 命名 Logger
//
// [Named] 为派生 logger 附加 "logger" 属性，便于按来源过滤，
// 例如搜索客户端的 "elasticsearch.query.data" 与 "elasticsearch.deprecation"。
// 未配置日志的组件使用 [Nop]。
//
// # 级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// Level 实现 encoding.TextMarshaler/TextUnmarshaler，可直接出现在配置结构体中。
package xlog
