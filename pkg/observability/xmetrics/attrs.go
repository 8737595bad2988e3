package xmetrics

import "time"

// 搜索请求常用属性 Key
const (
	AttrContextType = "search.context_type"
	AttrMethod      = "http.request.method"
	AttrPath        = "url.path"
	AttrStatusCode  = "http.response.status_code"
	AttrOpaqueID    = "search.opaque_id"
)

// String 字符串属性
func String(key, value string) Attr { return Attr{Key: key, Value: value} }

// Bool 布尔属性
func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

// Int 整数属性
func Int(key string, value int) Attr { return Attr{Key: key, Value: value} }

// Int64 int64 属性
func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

// Float64 float64 属性
func Float64(key string, value float64) Attr { return Attr{Key: key, Value: value} }

// Duration 时间间隔属性，以纳秒整数上报。
// 建议 key 带单位，例如 "took_ns"。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }

// Any 任意类型属性，非基础类型按 fmt.Sprint 转为字符串
func Any(key string, value any) Attr { return Attr{Key: key, Value: value} }
