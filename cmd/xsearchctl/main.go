// xsearchctl 是 xsearch 客户端的命令行工具，用于排查搜索集群连接与查询。
//
// 用法:
//
//	xsearchctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件路径，读取 elasticsearch 节；为空时只使用 XESKIT_ES_ 环境变量
//	--type           客户端逻辑类型，出现在查询日志名中 (默认: data)
//	--opaque-id      请求的关联标识 (X-Opaque-Id)
//	-t, --timeout    命令超时时间 (默认: 30s)
//	--log-level      日志级别 (默认: warn)
//
// 命令:
//
//	request METHOD PATH   发送请求并打印响应
//	health                检查集群是否可达
//	wait                  阻塞直到集群可达或超时
//
// 退出码:
//
//	0: 命令执行成功
//	1: 请求失败（传输错误、状态码 >= 400、集群不可达）
//	2: 参数或配置错误
//
// 示例:
//
//	xsearchctl -c es.yaml request GET /_cluster/health
//	xsearchctl -c es.yaml request POST /logs-*/_search --body '{"size":1}' --query pretty=true
//	xsearchctl -c es.yaml request GET /_cat/indices --raw
//	XESKIT_ES_HOSTS=http://localhost:9200 xsearchctl wait -t 2m
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// setupSignalHandler 第一次信号取消 ctx，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
