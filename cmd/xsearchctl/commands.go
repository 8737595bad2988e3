package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xeskit/pkg/context/xctx"
	"github.com/omeyang/xeskit/pkg/observability/xlog"
	"github.com/omeyang/xeskit/pkg/storage/xsearch"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultContextType = "data"
	defaultLogLevel    = "warn"
	defaultWaitDelay   = 500 * time.Millisecond
)

// 请求方法白名单
var allowedMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost,
	http.MethodPut, http.MethodDelete, http.MethodPatch,
}

// exitError 命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 参数或配置错误，退出码 2。
type usageError struct {
	msg string
	err error
}

func (e *usageError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// run 执行命令行并返回退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	err := app.Run(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		// 框架已向 stderr 输出详情
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 自身产生的参数错误（未知 flag、flag 值非法等）。
func isCLIUsageError(err error) bool {
	if _, ok := err.(cli.ExitCoder); ok {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"flag provided but not defined",
		"invalid value",
		"flag needs an argument",
		"No help topic",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xsearchctl",
		Usage:     "搜索集群命令行客户端",
		Version:   fmt.Sprintf("%s (commit: %s, client: %s)", Version, GitCommit, xsearch.Version),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML/JSON），为空时只读取 XESKIT_ES_ 环境变量",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "客户端逻辑类型",
				Value: defaultContextType,
			},
			&cli.StringFlag{
				Name:  "opaque-id",
				Usage: "请求关联标识，以 X-Opaque-Id 发送",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别（debug 时输出查询日志）",
				Value: defaultLogLevel,
			},
		},
		Commands: []*cli.Command{
			createRequestCommand(),
			createHealthCommand(),
			createWaitCommand(),
		},
		// 查询参数值可能含逗号
		DisableSliceFlagSeparator: true,
		// 由 run 统一映射退出码，不让框架调用 os.Exit
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func createRequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Aliases:   []string{"r"},
		Usage:     "发送请求并打印响应",
		ArgsUsage: "METHOD PATH",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "查询参数 k=v，可重复",
			},
			&cli.StringFlag{
				Name:    "body",
				Aliases: []string{"d"},
				Usage:   "请求体，以 @ 开头时从文件读取",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "只打印响应体",
			},
			&cli.BoolFlag{
				Name:  "headers",
				Usage: "打印响应头",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req, err := parseRequest(cmd.Args().Slice(), cmd.StringSlice("query"), cmd.String("body"))
			if err != nil {
				return err
			}
			return withClient(ctx, cmd, func(ctx context.Context, c *xsearch.Client) error {
				return cmdRequest(ctx, c, req, requestFlags{
					timeout: cmd.Duration("timeout"),
					raw:     cmd.Bool("raw"),
					headers: cmd.Bool("headers"),
				}, cmd.Root().Writer, cmd.Root().ErrWriter)
			})
		},
	}
}

func createHealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "检查集群是否可达",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withClient(ctx, cmd, func(ctx context.Context, c *xsearch.Client) error {
				return cmdHealth(ctx, c, cmd.Root().Writer)
			})
		},
	}
}

func createWaitCommand() *cli.Command {
	return &cli.Command{
		Name:  "wait",
		Usage: "阻塞直到集群可达，受 --timeout 约束",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "attempts",
				Usage: "最大探测次数",
				Value: xsearch.DefaultReadyAttempts,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "首次重试间隔，之后指数退避",
				Value: defaultWaitDelay,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			retryOpt := xsearch.WithReadyRetry(uint(cmd.Uint("attempts")), cmd.Duration("interval"), 0)
			return withClient(ctx, cmd, func(ctx context.Context, c *xsearch.Client) error {
				return cmdWait(ctx, c, cmd.Duration("timeout"), cmd.Root().Writer)
			}, retryOpt)
		},
	}
}

// withClient 按全局选项构建客户端并执行 fn，结束后关闭客户端。
// 配置与构建错误视为参数错误。
func withClient(ctx context.Context, cmd *cli.Command, fn func(context.Context, *xsearch.Client) error, extra ...xsearch.Option) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return &usageError{msg: "加载配置失败", err: err}
	}

	logger, cleanup, err := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(cmd.String("log-level")).
		Build()
	if err != nil {
		return &usageError{msg: "日志配置错误", err: err}
	}
	defer func() { _ = cleanup() }()

	opts := append([]xsearch.Option{xsearch.WithLogger(logger)}, extra...)
	client, err := xsearch.Build(cfg, xsearch.BuildParams{
		ContextType:     cmd.String("type"),
		ContextProvider: xctx.OpaqueIDProvider,
	}, opts...)
	if err != nil {
		return &usageError{msg: "创建客户端失败", err: err}
	}
	defer func() { _ = client.Close() }()

	ctx, err = commandContext(ctx, cmd.String("opaque-id"), cmd.Name)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}

// loadConfig path 为空时从默认值加环境变量构造配置。
func loadConfig(path string) (xsearch.Config, error) {
	if path != "" {
		return xsearch.LoadConfig(path)
	}
	cfg := xsearch.DefaultConfig()
	if err := xsearch.ApplyEnv(&cfg); err != nil {
		return xsearch.Config{}, err
	}
	return cfg, nil
}

// commandContext 注入关联标识与执行单元，关联标识形如 "<opaque-id>;cli:<command>"。
// 未指定 opaque-id 时生成 RequestID 代替。
func commandContext(ctx context.Context, opaqueID, command string) (context.Context, error) {
	ctx, err := xctx.WithExecution(ctx, xctx.Execution{Type: "cli", Name: command})
	if err != nil {
		return nil, err
	}
	if opaqueID == "" {
		return xctx.EnsureRequestID(ctx)
	}
	return xctx.WithOpaqueID(ctx, opaqueID)
}

// parseRequest 校验位置参数并组装请求描述。
func parseRequest(args, query []string, body string) (*xsearch.Request, error) {
	if len(args) != 2 {
		return nil, usagef("request 需要 METHOD 和 PATH 两个参数，实际 %d 个", len(args))
	}
	method := strings.ToUpper(args[0])
	if !slices.Contains(allowedMethods, method) {
		return nil, usagef("不支持的请求方法 %q", args[0])
	}
	path := args[1]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	values, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	data, err := readBody(body)
	if err != nil {
		return nil, err
	}
	return &xsearch.Request{Method: method, Path: path, Query: values, Body: data}, nil
}

// parseQuery 解析 k=v 形式的查询参数，同名参数保留多个值。
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, usagef("查询参数 %q 应为 k=v 形式", p)
		}
		values.Add(k, v)
	}
	return values, nil
}

// readBody "@file" 从文件读取，其余按字面值。
func readBody(s string) ([]byte, error) {
	switch {
	case s == "":
		return nil, nil
	case strings.HasPrefix(s, "@"):
		data, err := os.ReadFile(s[1:])
		if err != nil {
			return nil, &usageError{msg: "读取请求体文件失败", err: err}
		}
		return data, nil
	default:
		return []byte(s), nil
	}
}

type requestFlags struct {
	timeout time.Duration
	raw     bool
	headers bool
}

// cmdRequest 发送请求。状态码 >= 400 时仍打印响应，退出码 1。
func cmdRequest(ctx context.Context, c *xsearch.Client, req *xsearch.Request, f requestFlags, stdout, stderr io.Writer) error {
	opts := &xsearch.RequestOptions{Timeout: f.timeout}
	if f.raw {
		opts.Meta = xsearch.Bool(false)
	}

	res, err := c.Perform(ctx, req, opts)
	if err != nil {
		var re *xsearch.ResponseError
		if !errors.As(err, &re) || re.Response == nil {
			return err
		}
		printResponse(stdout, stderr, re.Response, f)
		return &exitError{code: 1}
	}

	if resp, ok := xsearch.AsResponse(res); ok {
		printResponse(stdout, stderr, resp, f)
		return nil
	}
	writeBody(stdout, xsearch.Bytes(res))
	return nil
}

func printResponse(stdout, stderr io.Writer, resp *xsearch.Response, f requestFlags) {
	for _, w := range resp.Warnings {
		fmt.Fprintf(stderr, "警告: %s\n", w)
	}
	if f.raw {
		writeBody(stdout, resp.Body)
		return
	}

	fmt.Fprintf(stdout, "HTTP %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), resp.Meta.Duration.Round(time.Millisecond))
	if f.headers {
		keys := make([]string, 0, len(resp.Header))
		for k := range resp.Header {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			for _, v := range resp.Header[k] {
				fmt.Fprintf(stdout, "%s: %s\n", k, v)
			}
		}
	}
	fmt.Fprintln(stdout)
	writeBody(stdout, resp.Body)
}

func writeBody(w io.Writer, body []byte) {
	if len(body) == 0 {
		return
	}
	_, _ = w.Write(body)
	if body[len(body)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

// cmdHealth 集群不可达时退出码 1。
func cmdHealth(ctx context.Context, c *xsearch.Client, stdout io.Writer) error {
	hosts := hostList(c)
	if err := c.Health(ctx); err != nil {
		fmt.Fprintf(stdout, "状态: 不可达\n集群: %s\n详情: %v\n", hosts, err)
		return &exitError{code: 1}
	}
	fmt.Fprintf(stdout, "状态: 可达\n集群: %s\n", hosts)
	return nil
}

// cmdWait 在 timeout 内等待集群就绪。
func cmdWait(ctx context.Context, c *xsearch.Client, timeout time.Duration, stdout io.Writer) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.WaitReady(ctx); err != nil {
		fmt.Fprintf(stdout, "集群未就绪: %v\n", err)
		return &exitError{code: 1}
	}
	fmt.Fprintf(stdout, "集群已就绪，用时 %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func hostList(c *xsearch.Client) string {
	hosts := c.Options().Hosts
	out := make([]string, 0, len(hosts))
	for _, u := range hosts {
		out = append(out, u.Redacted())
	}
	return strings.Join(out, ",")
}
