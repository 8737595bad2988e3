// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xsearch: 搜索集群（Elasticsearch 兼容）客户端，关联标识注入、查询日志与熔断
//
// 设计原则：
//   - 内置可观测性（指标、追踪、慢查询检测）
//   - 连接层重试与熔断可配置
package storage
