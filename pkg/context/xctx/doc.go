// Package xctx 提供轻量级的请求上下文管理。
//
// 整合追踪信息（trace）和出站关联标识（opaque ID）的 context 存取能力，
// 并为日志系统提供属性提取功能。
//
// # 核心字段
//
//   - trace_id   : 追踪标识（W3C 规范，128-bit）
//   - span_id    : 跨度标识（W3C 规范，64-bit）
//   - request_id : 请求标识（UUID）
//   - opaque_id  : 出站搜索请求的关联标识（X-Opaque-Id）
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入
//	Xxx(ctx)               - 读取，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取，缺失时返回错误
//	EnsureXxx(ctx)         - 已存在则沿用，否则生成
//
// # 关联标识推导
//
// [OpaqueIDProvider] 的签名与搜索客户端的 ContextProvider 一致，可直接作为
// 客户端构建参数传入：
//
//	client, err := xsearch.Build(cfg, xsearch.BuildParams{
//	    ContextType:     "data",
//	    ContextProvider: xctx.OpaqueIDProvider,
//	})
//
// xctx 是纯粹的存取层，不对字段值做格式校验。
package xctx
