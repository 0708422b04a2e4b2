// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 该包实现了基于 OpenTelemetry 标准的遥测数据收集，支持分布式链路追踪，
// 可将追踪数据导出到兼容 OTLP 协议的后端（如 Tempo、Jaeger 等）。
// 主要功能包括：
//   - 初始化和配置 OpenTelemetry 追踪器
//   - 创建和管理追踪 Span
//   - 日志与追踪上下文的自动关联
//   - 支持采样率配置以控制追踪数据量
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config 定义遥测配置结构体。
type Config struct {
	// Enabled 控制是否启用遥测功能，设为 false 时将跳过追踪器初始化
	Enabled bool `yaml:"enabled"`
	// Endpoint 指定 OTLP 接收器的 gRPC 端点地址，例如 "tempo:4317"
	Endpoint string `yaml:"endpoint"`
	// ServiceName 标识当前服务的名称，将作为追踪数据的服务标识
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，取值范围 0.0 到 1.0（1.0 表示 100% 采样）
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 标识当前运行环境，如 production、staging、development
	Environment string `yaml:"environment"`
}

// Telemetry 封装了 OpenTelemetry 的追踪提供者和导出器。
type Telemetry struct {
	// config 保存遥测配置
	config Config
	// tracerProvider 负责创建追踪器和管理 Span 处理
	tracerProvider *sdktrace.TracerProvider
	// tracer 用于创建 Span 的追踪器实例
	tracer trace.Tracer
}

// New 根据给定配置创建新的 Telemetry 实例。
// 未启用时返回仅包含空操作追踪器的实例；启用时建立到 OTLP 接收器的
// gRPC 连接，配置采样器，并设置全局追踪提供者和上下文传播器。
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{
			config: cfg,
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	// 设置配置默认值
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lumen-edged"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 0.1
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "tempo:4317"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 建立到 OTLP 接收器的 gRPC 连接，内网环境使用不安全凭据
	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	// 资源元数据会附加到所有追踪数据上，用于标识数据来源
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// 基于 TraceID 的比率采样，确保同一追踪的所有 Span 采样决策一致
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		// 父级采样策略：父 Span 已被采样时子 Span 也采样
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		config:         cfg,
		tracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
	}, nil
}

// Tracer 返回用于创建 Span 的追踪器实例。
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown 优雅关闭遥测提供者，刷新所有待发送的追踪数据。
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// IsEnabled 返回遥测功能是否已启用。
func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled
}

// StartSpan 创建一个具有指定名称和选项的新 Span。
// 新 Span 会自动成为上下文中当前 Span 的子 Span（如果存在）。
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("lumen").Start(ctx, name, opts...)
}

// RecordError 在当前 Span 上记录错误。
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}
