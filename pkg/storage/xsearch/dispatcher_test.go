package xsearch_test

import (
	"context"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xeskit/pkg/resilience/xbreaker"
	"github.com/omeyang/xeskit/pkg/storage/xsearch"
)

// seenRequest 服务端收到的请求快照。
type seenRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// newSearchServer 返回记录请求的测试服务器，handler 为 nil 时回 200 {}。
func newSearchServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Pointer[seenRequest]) {
	t.Helper()
	var last atomic.Pointer[seenRequest]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last.Store(&seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func buildClient(t *testing.T, hosts []string, mutate func(*xsearch.Config), opts ...xsearch.Option) *xsearch.Client {
	t.Helper()
	cfg := xsearch.DefaultConfig()
	cfg.Hosts = hosts
	cfg.MaxRetries = 0
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := xsearch.Build(cfg, xsearch.BuildParams{ContextType: "data", ContextProvider: constProvider("req-42")}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDispatch_RequestMapping(t *testing.T) {
	srv, last := newSearchServer(t, nil)
	c := buildClient(t, []string{srv.URL}, func(cfg *xsearch.Config) {
		cfg.Username = "kibana_system"
		cfg.Password = "changeme"
	})

	resp, err := c.Do(context.Background(), &xsearch.Request{
		Method: http.MethodPost,
		Path:   "/logs-*/_search",
		Query:  url.Values{"size": {"10"}},
		Body:   []byte(`{"query":{"match_all":{}}}`),
	}, &xsearch.RequestOptions{Headers: http.Header{"X-Extra": {"1"}}})
	require.NoError(t, err)

	seen := last.Load()
	require.NotNil(t, seen)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/logs-*/_search", seen.Path)
	assert.Equal(t, "10", seen.Query.Get("size"))
	assert.Equal(t, `{"query":{"match_all":{}}}`, seen.Body)
	assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", seen.Header.Get("Accept"))
	assert.Equal(t, "req-42", seen.Header.Get(xsearch.HeaderOpaqueID))
	assert.Equal(t, xsearch.ProductOrigin, seen.Header.Get(xsearch.HeaderProductOrigin))
	assert.Equal(t, "1", seen.Header.Get("X-Extra"))
	assert.Contains(t, seen.Header.Get("User-Agent"), "xeskit/")
	user, pass, ok := (&http.Request{Header: seen.Header}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "kibana_system", user)
	assert.Equal(t, "changeme", pass)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, string(resp.Body))
	assert.Equal(t, "req-42", resp.Meta.Request.OpaqueID)
	assert.Equal(t, "size=10", resp.Meta.Request.Query)
	assert.Empty(t, resp.Meta.Request.Headers.Get("Authorization"))
}

func TestDispatch_HostPathPrefix(t *testing.T) {
	srv, last := newSearchServer(t, nil)
	c := buildClient(t, []string{srv.URL + "/proxy/"}, nil)

	_, err := c.Perform(context.Background(), &xsearch.Request{Method: http.MethodGet, Path: "/_cluster/health"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/proxy/_cluster/health", last.Load().Path)
}

func TestDispatch_CallerHeaderOverridesDefault(t *testing.T) {
	srv, last := newSearchServer(t, nil)
	c := buildClient(t, []string{srv.URL}, func(cfg *xsearch.Config) {
		cfg.CustomHeaders = map[string]string{"X-Team": "search"}
	})

	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"},
		&xsearch.RequestOptions{Headers: http.Header{"X-Team": {"override"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"override"}, last.Load().Header.Values("X-Team"))
}

func TestDispatch_WarningsAndRawMode(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Warning", `299 Elasticsearch-8.0.0 "[types removal] deprecated"`)
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	})
	c := buildClient(t, []string{srv.URL}, nil)

	res, err := c.Perform(context.Background(), &xsearch.Request{Path: "/_template/x"}, nil)
	require.NoError(t, err)
	resp, ok := xsearch.AsResponse(res)
	require.True(t, ok)
	assert.Equal(t, []string{`299 Elasticsearch-8.0.0 "[types removal] deprecated"`}, resp.Warnings)

	res, err = c.Perform(context.Background(), &xsearch.Request{Path: "/_template/x"},
		&xsearch.RequestOptions{Meta: xsearch.Bool(false)})
	require.NoError(t, err)
	raw, ok := res.(xsearch.RawBody)
	require.True(t, ok)
	assert.JSONEq(t, `{"acknowledged":true}`, string(raw))
	assert.JSONEq(t, `{"acknowledged":true}`, string(xsearch.Bytes(res)))

	_, err = c.Do(context.Background(), &xsearch.Request{Path: "/"}, &xsearch.RequestOptions{Meta: xsearch.Bool(false)})
	assert.ErrorIs(t, err, xsearch.ErrRawResult)
}

func TestDispatch_ErrorStatus(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index [x]"},"status":404}`)
	})
	c := buildClient(t, []string{srv.URL}, nil)

	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/x/_search"}, nil)
	var re *xsearch.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode())
	assert.Equal(t, "index_not_found_exception", re.Type)
	assert.Equal(t, "no such index [x]", re.Reason)
	assert.Equal(t, "xsearch: status 404: [index_not_found_exception] no such index [x]", re.Error())
	assert.Equal(t, "req-42", re.Response.Meta.Request.OpaqueID)

	res, err := c.Perform(context.Background(), &xsearch.Request{Path: "/x/_search"},
		&xsearch.RequestOptions{IgnoreStatus: []int{http.StatusNotFound}})
	require.NoError(t, err)
	resp, ok := xsearch.AsResponse(res)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDispatch_StringErrorBody(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad things"}`)
	})
	c := buildClient(t, []string{srv.URL}, nil)

	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
	var re *xsearch.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Empty(t, re.Type)
	assert.Equal(t, "bad things", re.Reason)
	assert.Equal(t, "xsearch: status 400: bad things", re.Error())
}

func TestDispatch_Timeout(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	c := buildClient(t, []string{srv.URL}, nil)

	start := time.Now()
	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/slow"},
		&xsearch.RequestOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestDispatch_CallTimeoutOverridesDefault(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(300 * time.Millisecond):
		}
		_, _ = io.WriteString(w, `{}`)
	})
	c := buildClient(t, []string{srv.URL}, func(cfg *xsearch.Config) {
		cfg.RequestTimeout = 100 * time.Millisecond
	})

	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/slow"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := c.Perform(context.Background(), &xsearch.Request{Path: "/slow"},
		&xsearch.RequestOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	resp, ok := xsearch.AsResponse(res)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_DefaultTimeoutBoundsBodyRead(t *testing.T) {
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush() //nolint:forcetypeassert // httptest 支持 Flush
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
			_, _ = io.WriteString(w, `{}`)
		}
	})
	c := buildClient(t, []string{srv.URL}, func(cfg *xsearch.Config) {
		cfg.RequestTimeout = 100 * time.Millisecond
	})

	start := time.Now()
	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/stream"}, nil)
	assert.ErrorIs(t, err, xsearch.ErrReadBody)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestDispatch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := buildClient(t, []string{addr}, nil)
	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Stats().QueryErrors)
}

func TestDispatch_CircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	srv, _ := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := buildClient(t, []string{srv.URL}, func(cfg *xsearch.Config) {
		cfg.CircuitBreaker.Enabled = true
		cfg.CircuitBreaker.ConsecutiveFailures = 2
		cfg.CircuitBreaker.OpenTimeout = time.Hour
	})

	for range 2 {
		_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
		var re *xsearch.ResponseError
		require.ErrorAs(t, err, &re)
	}
	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
	assert.True(t, xbreaker.IsOpen(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestDispatch_TransportMetrics(t *testing.T) {
	srv, _ := newSearchServer(t, nil)
	c := buildClient(t, []string{srv.URL}, nil)

	_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
	require.NoError(t, err)

	m, err := c.TransportMetrics()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Requests)
	assert.Equal(t, 1, m.Responses[http.StatusOK])
}

func TestDispatch_OpenTelemetryInstrumentation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv, _ := newSearchServer(t, nil)
	c := buildClient(t, []string{srv.URL}, nil, xsearch.WithTracerProvider(tp))

	_, err := c.Perform(context.Background(), &xsearch.Request{Method: http.MethodPost, Path: "/logs/_search", Body: []byte(`{}`)}, nil)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "search", spans[0].Name)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "elasticsearch", attrs["db.system"])
	assert.Equal(t, "search", attrs["db.operation"])
	assert.Equal(t, http.MethodPost, attrs["http.request.method"])
}

func writeServerCA(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestDispatch_TLSVerificationModes(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	ca := writeServerCA(t, srv)

	// httptest 证书只对 example.com 与回环地址有效，换成 localhost 以触发主机名不匹配
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Host = "localhost:" + u.Port()
	localhost := u.String()

	tests := []struct {
		name    string
		host    string
		mode    string
		ca      bool
		wantErr bool
	}{
		{"full with ca", srv.URL, xsearch.VerificationModeFull, true, false},
		{"full without ca", srv.URL, xsearch.VerificationModeFull, false, true},
		{"full hostname mismatch", localhost, xsearch.VerificationModeFull, true, true},
		{"certificate ignores hostname", localhost, xsearch.VerificationModeCertificate, true, false},
		{"certificate without ca", localhost, xsearch.VerificationModeCertificate, false, true},
		{"none", localhost, xsearch.VerificationModeNone, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildClient(t, []string{tt.host}, func(cfg *xsearch.Config) {
				cfg.SSL.VerificationMode = tt.mode
				if tt.ca {
					cfg.SSL.CertificateAuthorities = []string{ca}
				}
			})
			_, err := c.Perform(context.Background(), &xsearch.Request{Path: "/"}, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBuild_InvalidCAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	cfg := xsearch.DefaultConfig()
	cfg.Hosts = []string{"https://localhost:9200"}
	cfg.SSL.CertificateAuthorities = []string{path}

	_, err := xsearch.Build(cfg, xsearch.BuildParams{ContextType: "data"})
	assert.ErrorIs(t, err, xsearch.ErrLoadCertificate)
}
