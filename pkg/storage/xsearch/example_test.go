package xsearch_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/omeyang/xeskit/pkg/config/xconf"
	"github.com/omeyang/xeskit/pkg/context/xctx"
	"github.com/omeyang/xeskit/pkg/storage/xsearch"
)

// ExampleLoadConfigBytes 演示从 YAML 加载配置。
func ExampleLoadConfigBytes() {
	cfg, err := xsearch.LoadConfigBytes([]byte(`
elasticsearch:
  hosts: ["http://es-1:9200"]
  request_timeout: 5s
`), xconf.FormatYAML)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Hosts[0], cfg.RequestTimeout, cfg.SSL.VerificationMode)
	// Output: http://es-1:9200 5s full
}

// ExampleNewContextTransport 演示关联标识注入。
func ExampleNewContextTransport() {
	next := xsearch.DispatcherFunc(func(_ context.Context, _ *xsearch.Request, opts *xsearch.RequestOptions) (xsearch.Result, error) {
		fmt.Println("opaque id:", opts.OpaqueID)
		return xsearch.RawBody(`{}`), nil
	})

	tr, err := xsearch.NewContextTransport(next, xctx.OpaqueIDProvider)
	if err != nil {
		log.Fatal(err)
	}

	ctx, _ := xctx.WithRequestID(context.Background(), "req-1")
	ctx, _ = xctx.WithExecution(ctx, xctx.Execution{Type: "task", Name: "reindex"})
	_, _ = tr.Dispatch(ctx, &xsearch.Request{Method: http.MethodGet, Path: "/_cluster/health"}, nil)
	// Output: opaque id: req-1;task:reindex
}

// ExampleBuild 演示构建客户端并发送查询。
func ExampleBuild() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/missing/_doc/1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index [missing]"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":3}}}`))
	}))
	defer srv.Close()

	cfg := xsearch.DefaultConfig()
	cfg.Hosts = []string{srv.URL}
	cfg.MaxRetries = 0

	client, err := xsearch.Build(cfg, xsearch.BuildParams{
		ContextType:     "data",
		ContextProvider: xctx.OpaqueIDProvider,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx, _ := xctx.WithRequestID(context.Background(), "req-7")
	resp, err := client.Do(ctx, &xsearch.Request{
		Method: http.MethodPost,
		Path:   "/logs-*/_search",
		Body:   []byte(`{"query":{"match_all":{}}}`),
	}, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.StatusCode, resp.Meta.Request.OpaqueID, string(resp.Body))

	_, err = client.Do(ctx, &xsearch.Request{Method: http.MethodGet, Path: "/missing/_doc/1"}, nil)
	var re *xsearch.ResponseError
	if errors.As(err, &re) {
		fmt.Println(re.StatusCode(), re.Type)
	}
	// Output:
	// 200 req-7 {"hits":{"total":{"value":3}}}
	// 404 index_not_found_exception
}
