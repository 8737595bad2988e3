// Package xconf 基于 koanf 的配置加载器。
//
// # 加载
//
//   - [New]: 从文件加载，按扩展名识别 YAML（.yaml/.yml）或 JSON（.json）
//   - [NewFromBytes]: 从字节数据加载，适用于 K8s ConfigMap 挂载内容
//
// # 环境变量覆盖
//
// [ApplyEnv] 在 Unmarshal 之后调用，用带前缀的环境变量覆盖结构体字段（caarlos0/env）。
// 文件提供基线，环境变量提供部署差异。
//
// # 并发
//
// Reload 串行执行，解析成功后原子替换 koanf 实例，失败时保留旧配置。
// Client() 返回快照，Reload 后旧指针仍可用但数据过期，不要长期缓存。
//
// Unmarshal 使用 mapstructure，允许弱类型转换（"8080" → 8080）。
package xconf
