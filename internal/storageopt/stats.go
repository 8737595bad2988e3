package storageopt

import "sync/atomic"

// HealthCounter 健康检查计数器
type HealthCounter struct {
	pings      atomic.Int64
	pingErrors atomic.Int64
}

func (h *HealthCounter) IncPing()          { h.pings.Add(1) }
func (h *HealthCounter) IncPingError()     { h.pingErrors.Add(1) }
func (h *HealthCounter) PingCount() int64  { return h.pings.Load() }
func (h *HealthCounter) PingErrors() int64 { return h.pingErrors.Load() }

// SlowQueryCounter 慢查询计数器
type SlowQueryCounter struct {
	count atomic.Int64
}

func (s *SlowQueryCounter) Inc()         { s.count.Add(1) }
func (s *SlowQueryCounter) Count() int64 { return s.count.Load() }

// QueryCounter 请求计数器，区分成功与失败。
type QueryCounter struct {
	queries atomic.Int64
	errors  atomic.Int64
}

func (q *QueryCounter) IncQuery()          { q.queries.Add(1) }
func (q *QueryCounter) IncQueryError()     { q.errors.Add(1) }
func (q *QueryCounter) QueryCount() int64  { return q.queries.Load() }
func (q *QueryCounter) QueryErrors() int64 { return q.errors.Load() }
