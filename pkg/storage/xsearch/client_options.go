package xsearch

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// 默认请求头
const (
	HeaderOpaqueID      = "X-Opaque-Id"
	HeaderProductOrigin = "X-Elastic-Product-Origin"
	HeaderWarning       = "Warning"
	ProductOrigin       = "xeskit"
)

// ClientOptions 由 Config 解析出的连接参数，只在构建出的客户端内部保留。
type ClientOptions struct {
	Hosts []*url.URL

	Username            string
	Password            string
	ServiceAccountToken string

	// Headers 每个请求都携带的默认头
	Headers http.Header

	RequestTimeout time.Duration
	PingTimeout    time.Duration

	SniffOnStart  bool
	SniffInterval time.Duration
	Compression   bool
	MaxRetries    int

	KeepAlive         bool
	MaxSockets        int
	MaxIdleSockets    int
	IdleSocketTimeout time.Duration

	TLS     TLSOptions
	Breaker BreakerConfig
}

// TLSOptions 已读入内存的 TLS 材料。
type TLSOptions struct {
	VerificationMode string
	// CACerts 每个元素是一个 PEM 文件的内容
	CACerts     [][]byte
	Certificate []byte
	Key         []byte
}

// ParseFunc 将 Config 解析为 ClientOptions，scoped 表示作用域客户端。
type ParseFunc func(cfg Config, scoped bool) (ClientOptions, error)

// ParseClientOptions 默认的配置解析器。
//
// 规则：
//   - 作用域客户端不带账号凭据，凭据来自转发的入站请求头
//   - 客户端证书只给内部用户客户端，或在 ssl.always_present_certificate 时也给作用域客户端
//   - 默认头先写 X-Elastic-Product-Origin，再写 custom_headers
func ParseClientOptions(cfg Config, scoped bool) (ClientOptions, error) {
	if len(cfg.Hosts) == 0 {
		return ClientOptions{}, ErrNoHosts
	}
	if cfg.Username == "elastic" {
		return ClientOptions{}, ErrSuperuserForbidden
	}
	if cfg.Username != "" && cfg.ServiceAccountToken != "" {
		return ClientOptions{}, ErrConflictingCredentials
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.SSL.VerificationMode))
	switch mode {
	case "":
		mode = VerificationModeFull
	case VerificationModeFull, VerificationModeCertificate, VerificationModeNone:
	default:
		return ClientOptions{}, fmt.Errorf("%w: %q", ErrInvalidVerificationMode, cfg.SSL.VerificationMode)
	}

	hosts := make([]*url.URL, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		u, err := parseHost(h)
		if err != nil {
			return ClientOptions{}, err
		}
		hosts = append(hosts, u)
	}

	opts := ClientOptions{
		Hosts:             hosts,
		Headers:           http.Header{},
		RequestTimeout:    orDuration(cfg.RequestTimeout, DefaultRequestTimeout),
		SniffOnStart:      cfg.SniffOnStart,
		SniffInterval:     cfg.SniffInterval,
		Compression:       cfg.Compression,
		MaxRetries:        cfg.MaxRetries,
		KeepAlive:         cfg.KeepAlive,
		MaxSockets:        cfg.MaxSockets,
		MaxIdleSockets:    cfg.MaxIdleSockets,
		IdleSocketTimeout: cfg.IdleSocketTimeout,
		TLS:               TLSOptions{VerificationMode: mode},
		Breaker:           cfg.CircuitBreaker,
	}
	opts.PingTimeout = orDuration(cfg.PingTimeout, opts.RequestTimeout)

	opts.Headers.Set(HeaderProductOrigin, ProductOrigin)
	for k, v := range cfg.CustomHeaders {
		opts.Headers.Set(k, v)
	}

	if !scoped {
		opts.Username = cfg.Username
		opts.Password = cfg.Password
		opts.ServiceAccountToken = cfg.ServiceAccountToken
	}

	for _, path := range cfg.SSL.CertificateAuthorities {
		pem, err := readPEM(path)
		if err != nil {
			return ClientOptions{}, err
		}
		opts.TLS.CACerts = append(opts.TLS.CACerts, pem)
	}

	if !scoped || cfg.SSL.AlwaysPresentCertificate {
		if cfg.SSL.Certificate != "" {
			pem, err := readPEM(cfg.SSL.Certificate)
			if err != nil {
				return ClientOptions{}, err
			}
			opts.TLS.Certificate = pem
		}
		if cfg.SSL.Key != "" {
			pem, err := readPEM(cfg.SSL.Key)
			if err != nil {
				return ClientOptions{}, err
			}
			opts.TLS.Key = pem
		}
	}

	return opts, nil
}

func parseHost(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidHost, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

func readPEM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCertificate, err)
	}
	return data, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
