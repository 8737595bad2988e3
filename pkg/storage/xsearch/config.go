package xsearch

import (
	"fmt"
	"time"

	"github.com/omeyang/xeskit/pkg/config/xconf"
)

// 配置默认值
const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultMaxIdleSockets     = 256
	DefaultIdleSocketTimeout  = 60 * time.Second
	DefaultBreakerFailures    = 5
	DefaultBreakerOpenTimeout = 30 * time.Second
	DefaultConfigKey          = "elasticsearch"
	DefaultEnvPrefix          = "XESKIT_ES_"
)

// TLS 校验模式
const (
	VerificationModeFull        = "full"
	VerificationModeCertificate = "certificate"
	VerificationModeNone        = "none"
)

// DefaultRequestHeadersWhitelist 作用域客户端默认转发的入站请求头。
var DefaultRequestHeadersWhitelist = []string{"authorization", "es-client-authentication"}

// Config 搜索集群连接配置，可从 YAML/JSON 加载并由环境变量覆盖。
//
//	elasticsearch:
//	  hosts: ["https://es-1:9200", "https://es-2:9200"]
//	  username: kibana_system
//	  password: changeme
//	  request_timeout: 30s
//	  ssl:
//	    verification_mode: certificate
//	    certificate_authorities: [/etc/es/ca.pem]
type Config struct {
	Hosts                   []string          `koanf:"hosts" env:"HOSTS" envSeparator:","`
	Username                string            `koanf:"username" env:"USERNAME"`
	Password                string            `koanf:"password" env:"PASSWORD"`
	ServiceAccountToken     string            `koanf:"service_account_token" env:"SERVICE_ACCOUNT_TOKEN"`
	CustomHeaders           map[string]string `koanf:"custom_headers" env:"CUSTOM_HEADERS"`
	RequestHeadersWhitelist []string          `koanf:"request_headers_whitelist" env:"REQUEST_HEADERS_WHITELIST" envSeparator:","`
	RequestTimeout          time.Duration     `koanf:"request_timeout" env:"REQUEST_TIMEOUT"`
	// PingTimeout 为 0 时取 RequestTimeout
	PingTimeout       time.Duration `koanf:"ping_timeout" env:"PING_TIMEOUT"`
	SniffOnStart      bool          `koanf:"sniff_on_start" env:"SNIFF_ON_START"`
	SniffInterval     time.Duration `koanf:"sniff_interval" env:"SNIFF_INTERVAL"`
	Compression       bool          `koanf:"compression" env:"COMPRESSION"`
	MaxRetries        int           `koanf:"max_retries" env:"MAX_RETRIES"`
	KeepAlive         bool          `koanf:"keep_alive" env:"KEEP_ALIVE"`
	MaxSockets        int           `koanf:"max_sockets" env:"MAX_SOCKETS"`
	MaxIdleSockets    int           `koanf:"max_idle_sockets" env:"MAX_IDLE_SOCKETS"`
	IdleSocketTimeout time.Duration `koanf:"idle_socket_timeout" env:"IDLE_SOCKET_TIMEOUT"`

	SSL            SSLConfig     `koanf:"ssl" envPrefix:"SSL_"`
	CircuitBreaker BreakerConfig `koanf:"circuit_breaker" envPrefix:"CIRCUIT_BREAKER_"`
}

// SSLConfig TLS 配置
type SSLConfig struct {
	// VerificationMode full（默认）、certificate（不校验主机名）、none
	VerificationMode       string   `koanf:"verification_mode" env:"VERIFICATION_MODE"`
	CertificateAuthorities []string `koanf:"certificate_authorities" env:"CERTIFICATE_AUTHORITIES" envSeparator:","`
	Certificate            string   `koanf:"certificate" env:"CERTIFICATE"`
	Key                    string   `koanf:"key" env:"KEY"`
	// AlwaysPresentCertificate 作用域客户端也携带客户端证书
	AlwaysPresentCertificate bool `koanf:"always_present_certificate" env:"ALWAYS_PRESENT_CERTIFICATE"`
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled" env:"ENABLED"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" env:"CONSECUTIVE_FAILURES"`
	OpenTimeout         time.Duration `koanf:"open_timeout" env:"OPEN_TIMEOUT"`
}

// DefaultConfig 返回带默认值的配置，Hosts 为空。
func DefaultConfig() Config {
	return Config{
		RequestHeadersWhitelist: append([]string(nil), DefaultRequestHeadersWhitelist...),
		RequestTimeout:          DefaultRequestTimeout,
		MaxRetries:              DefaultMaxRetries,
		KeepAlive:               true,
		MaxIdleSockets:          DefaultMaxIdleSockets,
		IdleSocketTimeout:       DefaultIdleSocketTimeout,
		SSL:                     SSLConfig{VerificationMode: VerificationModeFull},
		CircuitBreaker: BreakerConfig{
			ConsecutiveFailures: DefaultBreakerFailures,
			OpenTimeout:         DefaultBreakerOpenTimeout,
		},
	}
}

// LoadConfig 从配置文件的 elasticsearch 节加载配置，再用 XESKIT_ES_ 前缀的环境变量覆盖。
// 未出现的字段保留 DefaultConfig 的值。
func LoadConfig(path string) (Config, error) {
	src, err := xconf.New(path)
	if err != nil {
		return Config{}, err
	}
	return decodeConfig(src)
}

// LoadConfigBytes 与 LoadConfig 相同，数据来自内存。
func LoadConfigBytes(data []byte, format xconf.Format) (Config, error) {
	src, err := xconf.NewFromBytes(data, format)
	if err != nil {
		return Config{}, err
	}
	return decodeConfig(src)
}

func decodeConfig(src xconf.Config) (Config, error) {
	cfg := DefaultConfig()
	if err := src.Unmarshal(DefaultConfigKey, &cfg); err != nil {
		return Config{}, fmt.Errorf("xsearch: decode config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv 用 XESKIT_ES_ 前缀的环境变量覆盖 cfg，例如 XESKIT_ES_HOSTS、XESKIT_ES_SSL_VERIFICATION_MODE。
func ApplyEnv(cfg *Config) error {
	return xconf.ApplyEnv(cfg, DefaultEnvPrefix)
}
