// Package storageopt 提供存储客户端共享的工具：健康检查超时、统计计数器、慢查询检测器。
//
// 本包是 internal 包，仅供 pkg/storage 下的子包使用。
// 慢查询异步钩子运行在 pkg/util/xpool 的 worker pool 上。
package storageopt
