// Package xpool 提供轻量级泛型 worker pool。
//
//   - New 创建后立即启动 worker，workers 取值 [1, 65536]，queueSize 取值 [1, 16777216]
//   - Submit 永不阻塞，队列满返回 ErrQueueFull，适用于慢查询通知等可丢弃任务
//   - Close 等待队列排空；Shutdown(ctx) 支持超时，超时后可通过 Done 等待残留 worker
//   - 任务 panic 被恢复并以 Stack 级别记录（仅记录任务类型，不记录任务值）
//
// Close/Shutdown 不可在 handler 内调用，否则会死锁。
package xpool
