package xsearch

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/omeyang/xeskit/pkg/context/xctx"
)

// ClusterContextType ClusterClient 两个客户端共用的逻辑类型。
const ClusterContextType = "data"

// ClusterClient 持有内部用户客户端与作用域客户端。
//
// 内部用户客户端以配置中的账号访问集群；作用域客户端不带账号，
// 凭据来自入站请求中白名单内的头。
type ClusterClient struct {
	internal  *Client
	scoped    *Client
	whitelist []string
}

// NewClusterClient 构建内部用户客户端和作用域客户端，两者都以
// xctx.OpaqueIDProvider 推导关联标识。
func NewClusterClient(cfg Config, opts ...Option) (*ClusterClient, error) {
	internal, err := Build(cfg, BuildParams{
		ContextType:     ClusterContextType,
		ContextProvider: xctx.OpaqueIDProvider,
	}, opts...)
	if err != nil {
		return nil, err
	}

	scoped, err := Build(cfg, BuildParams{
		ContextType:     ClusterContextType,
		Scoped:          true,
		ContextProvider: xctx.OpaqueIDProvider,
	}, opts...)
	if err != nil {
		_ = internal.Close() //nolint:errcheck // 首次关闭不会失败
		return nil, err
	}

	whitelist := cfg.RequestHeadersWhitelist
	if len(whitelist) == 0 {
		whitelist = DefaultRequestHeadersWhitelist
	}
	return &ClusterClient{
		internal:  internal,
		scoped:    scoped,
		whitelist: append([]string(nil), whitelist...),
	}, nil
}

// AsInternalUser 返回以内部用户身份访问集群的客户端。
func (cc *ClusterClient) AsInternalUser() *Client {
	return cc.internal
}

// AsScoped 返回代表入站请求 r 访问集群的客户端。
//
// 白名单内的头（大小写不敏感）被转发；r 带有 X-Opaque-Id 时，
// 它作为调度 context 中的关联标识。r 为 nil 时不转发任何头。
func (cc *ClusterClient) AsScoped(r *http.Request) *ScopedClient {
	s := &ScopedClient{client: cc.scoped, headers: http.Header{}}
	if r == nil {
		return s
	}
	for name, vs := range r.Header {
		if !cc.allowed(name) || len(vs) == 0 {
			continue
		}
		key := http.CanonicalHeaderKey(name)
		s.headers[key] = append(s.headers[key], vs...)
	}
	s.opaqueID = r.Header.Get(HeaderOpaqueID)
	return s
}

func (cc *ClusterClient) allowed(name string) bool {
	for _, w := range cc.whitelist {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}

// Close 关闭两个客户端。
func (cc *ClusterClient) Close() error {
	return errors.Join(cc.internal.Close(), cc.scoped.Close())
}

// ScopedClient 携带入站请求转发头的客户端视图，按请求创建，开销很小。
type ScopedClient struct {
	client   *Client
	headers  http.Header
	opaqueID string
}

// Headers 返回将被转发的头的副本。
func (s *ScopedClient) Headers() http.Header {
	return s.headers.Clone()
}

// OpaqueID 返回入站请求的 X-Opaque-Id。
func (s *ScopedClient) OpaqueID() string {
	return s.opaqueID
}

// Perform 合并转发头后发送请求，同名时调用方的头优先。
func (s *ScopedClient) Perform(ctx context.Context, req *Request, opts *RequestOptions) (Result, error) {
	ctx, o := s.prepare(ctx, opts)
	return s.client.Perform(ctx, req, o)
}

// Do 同 Client.Do。
func (s *ScopedClient) Do(ctx context.Context, req *Request, opts *RequestOptions) (*Response, error) {
	ctx, o := s.prepare(ctx, opts)
	return s.client.Do(ctx, req, o)
}

func (s *ScopedClient) prepare(ctx context.Context, opts *RequestOptions) (context.Context, *RequestOptions) {
	if ctx == nil {
		ctx = context.Background()
	}
	var o RequestOptions
	if opts != nil {
		o = *opts
	}

	merged := s.headers.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for k, vs := range o.Headers {
		merged[http.CanonicalHeaderKey(k)] = vs
	}
	o.Headers = merged

	if s.opaqueID != "" && xctx.OpaqueID(ctx) == "" {
		if withID, err := xctx.WithOpaqueID(ctx, s.opaqueID); err == nil {
			ctx = withID
		}
	}
	return ctx, &o
}
