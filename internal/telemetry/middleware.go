// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 本文件实现了 HTTP 中间件和客户端传输层的追踪集成。
package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware 返回一个 HTTP 中间件，为传入的 HTTP 请求自动创建追踪 Span。
// 中间件从请求头中提取追踪上下文、创建 Span 并传递给下游处理器。
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithSpanOptions(
				trace.WithAttributes(
					attribute.String("service.name", serviceName),
				),
			),
			// Span 名称格式：HTTP 方法 + 路径（如 "GET /api/v1/workflows"）
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// HTTPClientTransport 返回一个带追踪功能的 http.RoundTripper。
// 出站请求会携带注入的追踪上下文，用于跨服务追踪传播。
func HTTPClientTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}

// InstrumentedHTTPClient 返回一个预配置了追踪功能的 HTTP 客户端。
// 推理执行器用它请求本机推理服务，保证推理耗时出现在触发链路的追踪里。
func InstrumentedHTTPClient() *http.Client {
	return &http.Client{
		Transport: HTTPClientTransport(nil),
	}
}
