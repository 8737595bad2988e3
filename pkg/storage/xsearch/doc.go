// Package xsearch 提供带关联标识注入的搜索引擎（Elasticsearch 兼容）客户端。
//
// # 调度链
//
// 每个请求依次经过：
//
//	ContextTransport → eventDispatcher → httpDispatcher → elastictransport
//
// [ContextTransport] 调用 ContextProvider 推导关联标识，调用方未设置时写入
// RequestOptions.OpaqueID（以 X-Opaque-Id 头发送），并在调用方未设置 Meta 时
// 强制返回响应信封。调用方的 RequestOptions 不会被修改。
//
// # 构建
//
//	cfg, err := xsearch.LoadConfig("config.yaml")
//	client, err := xsearch.Build(cfg, xsearch.BuildParams{
//	    ContextType:     "data",
//	    ContextProvider: xctx.OpaqueIDProvider,
//	}, xsearch.WithLogger(logger), xsearch.WithSlowQueryThreshold(time.Second))
//	defer client.Close()
//
//	resp, err := client.Do(ctx, &xsearch.Request{
//	    Method: http.MethodPost,
//	    Path:   "/logs-*/_search",
//	    Body:   []byte(`{"query":{"match_all":{}}}`),
//	}, nil)
//
// # 作用域客户端
//
// [ClusterClient] 同时持有内部用户客户端和作用域客户端。作用域客户端不携带账号，
// 转发入站请求中白名单内的头（默认 authorization、es-client-authentication）：
//
//	cc, err := xsearch.NewClusterClient(cfg)
//	resp, err := cc.AsScoped(r).Do(r.Context(), req, nil)
//
// # 埋点
//
// 默认的 [InstrumentQueryAndDeprecationLogger] 在 elasticsearch.query.<type>
// 记录每个请求，在 elasticsearch.deprecation 记录响应的 Warning 头。
// 通过 WithObserver 接入 xmetrics，通过 WithTracerProvider 启用
// elastictransport 自带的 OpenTelemetry 追踪。
//
// # 熔断
//
// circuit_breaker.enabled 为 true 时，底层 HTTP 传输由 xbreaker 保护，
// 连续的传输错误或 5xx 达到阈值后快速失败，且不再触发连接层重试。
package xsearch
