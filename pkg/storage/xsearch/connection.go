package xsearch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"

	"github.com/omeyang/xeskit/pkg/observability/xlog"
	"github.com/omeyang/xeskit/pkg/resilience/xbreaker"
)

// Version 写入 User-Agent 与 OpenTelemetry 埋点的版本号。
const Version = "0.1.0"

const (
	userAgent   = "xeskit/" + Version
	dialTimeout = 10 * time.Second
)

// newConnectionFactory 默认连接工厂：elastictransport 客户端，
// 底层 *http.Transport 按 ClientOptions 调优，按需挂熔断器。
func newConnectionFactory(o *Options) ConnectionFactory {
	return func(opts ClientOptions) (elastictransport.Interface, error) {
		conn, err := newConnection(opts, o)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// connection 默认连接，Close 时释放空闲连接。
type connection struct {
	*elastictransport.Client
	http *http.Transport
}

// CloseIdleConnections 关闭底层空闲连接。
func (c *connection) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func newConnection(opts ClientOptions, o *Options) (*connection, error) {
	tlsCfg, err := buildTLSConfig(opts.TLS)
	if err != nil {
		return nil, err
	}

	ht := newHTTPTransport(opts, tlsCfg)
	var rt http.RoundTripper = ht
	if opts.Breaker.Enabled {
		rt, err = newBreakerTransport(rt, opts.Breaker, o.Logger)
		if err != nil {
			return nil, err
		}
	}

	cfg := elastictransport.Config{
		UserAgent:             userAgent,
		URLs:                  opts.Hosts,
		Username:              opts.Username,
		Password:              opts.Password,
		ServiceToken:          opts.ServiceAccountToken,
		CompressRequestBody:   opts.Compression,
		MaxRetries:            opts.MaxRetries,
		DisableRetry:          opts.MaxRetries <= 0,
		RetryBackoff:          retryBackoff,
		RetryOnError:          retryOnError,
		EnableMetrics:         true,
		DiscoverNodesInterval: opts.SniffInterval,
		Transport:             rt,
		Logger:                &transportLogger{logger: xlog.Named(o.Logger, "elasticsearch.transport")},
	}
	if o.TracerProvider != nil {
		cfg.Instrumentation = elastictransport.NewOtelInstrumentation(o.TracerProvider, false, Version)
	}

	client, err := elastictransport.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("xsearch: create transport: %w", err)
	}
	return &connection{Client: client, http: ht}, nil
}

// newHTTPTransport 按套接字参数调优 *http.Transport。
func newHTTPTransport(opts ClientOptions, tlsCfg *tls.Config) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // 标准库默认值
	t.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlivePeriod(opts.KeepAlive),
	}).DialContext
	t.DisableKeepAlives = !opts.KeepAlive
	t.MaxConnsPerHost = opts.MaxSockets
	if opts.MaxIdleSockets > 0 {
		t.MaxIdleConns = opts.MaxIdleSockets
		t.MaxIdleConnsPerHost = opts.MaxIdleSockets
	}
	if opts.IdleSocketTimeout > 0 {
		t.IdleConnTimeout = opts.IdleSocketTimeout
	}
	t.TLSClientConfig = tlsCfg
	return t
}

func keepAlivePeriod(enabled bool) time.Duration {
	if enabled {
		return 30 * time.Second
	}
	return -1
}

// buildTLSConfig 按校验模式构建 TLS 配置。
//
//   - full：校验证书链与主机名
//   - certificate：只校验证书链，不校验主机名
//   - none：不做任何校验
func buildTLSConfig(t TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if len(t.CACerts) > 0 {
		pool := x509.NewCertPool()
		for _, pem := range t.CACerts {
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("%w: no certificate found in CA file", ErrLoadCertificate)
			}
		}
		cfg.RootCAs = pool
	}

	if len(t.Certificate) > 0 || len(t.Key) > 0 {
		pair, err := tls.X509KeyPair(t.Certificate, t.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadCertificate, err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	switch t.VerificationMode {
	case VerificationModeNone:
		cfg.InsecureSkipVerify = true //nolint:gosec // 由 ssl.verification_mode 显式要求
	case VerificationModeCertificate:
		cfg.InsecureSkipVerify = true //nolint:gosec // 证书链在 VerifyPeerCertificate 中校验
		cfg.VerifyPeerCertificate = verifyChainOnly(cfg.RootCAs)
	}
	return cfg, nil
}

// verifyChainOnly 校验对端证书链，跳过主机名校验。roots 为 nil 时使用系统根证书。
func verifyChainOnly(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("xsearch: peer presented no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("xsearch: parse peer certificate: %w", err)
			}
			certs = append(certs, c)
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
		return err
	}
}

func newBreakerTransport(next http.RoundTripper, cfg BreakerConfig, logger xlog.Logger) (http.RoundTripper, error) {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	timeout := orDuration(cfg.OpenTimeout, DefaultBreakerOpenTimeout)
	log := xlog.Named(logger, "elasticsearch.breaker")

	b := xbreaker.NewBreaker("elasticsearch",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(failures)),
		xbreaker.WithTimeout(timeout),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}),
	)
	return xbreaker.NewRoundTripper(next, b)
}

// retryBackoff 指数退避，上限 5 秒。
func retryBackoff(attempt int) time.Duration {
	d := time.Duration(1<<min(attempt, 6)) * 50 * time.Millisecond
	return min(d, 5*time.Second)
}

// retryOnError 熔断器拒绝或 ctx 结束的请求不再重试。
func retryOnError(_ *http.Request, err error) bool {
	return !xbreaker.IsBreakerError(err) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// transportLogger 将 elastictransport 的往返日志写入 xlog（Debug 级别）。
type transportLogger struct {
	logger xlog.Logger
}

var _ elastictransport.Logger = (*transportLogger)(nil)

func (l *transportLogger) LogRoundTrip(req *http.Request, res *http.Response, err error, _ time.Time, dur time.Duration) error {
	ctx := context.Background()
	attrs := make([]slog.Attr, 0, 5)
	if req != nil {
		ctx = req.Context()
		attrs = append(attrs, xlog.Method(req.Method), slog.String("host", req.URL.Host), xlog.Path(req.URL.Path))
	}
	if res != nil {
		attrs = append(attrs, xlog.StatusCode(res.StatusCode))
	}
	attrs = append(attrs, xlog.Duration(dur))
	if err != nil {
		attrs = append(attrs, xlog.Err(err))
	}
	l.logger.Debug(ctx, "round trip", attrs...)
	return nil
}

func (l *transportLogger) RequestBodyEnabled() bool  { return false }
func (l *transportLogger) ResponseBodyEnabled() bool { return false }
