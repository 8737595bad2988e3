package xconf

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv 用环境变量覆盖 target 中带 `env` 标签的字段，prefix 为变量名前缀。
//
// 只覆盖已设置的变量，文件中加载的值在变量缺失时保留。
//
//	type searchConf struct {
//	    Hosts []string `koanf:"hosts" env:"HOSTS" envSeparator:","`
//	}
//	err := xconf.ApplyEnv(&c, "XESKIT_ES_")
func ApplyEnv(target any, prefix string) error {
	return applyEnv(target, env.Options{Prefix: prefix})
}

// ApplyEnvFrom 与 ApplyEnv 相同，但从 environ 读取变量而非进程环境，测试时使用。
func ApplyEnvFrom(target any, prefix string, environ map[string]string) error {
	return applyEnv(target, env.Options{Prefix: prefix, Environment: environ})
}

func applyEnv(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("%w: %w", ErrEnvFailed, err)
	}
	return nil
}
