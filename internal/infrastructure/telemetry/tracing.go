package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// 导出器名称。
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Tracing 持有已安装的 TracerProvider；未启用时 Provider 为 nil。
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// NewTracing 安装全局 TracerProvider 与 W3C 传播器。
// 未配置导出器时仍会生成 trace 上下文，日志中的 trace_id/span_id 可用于关联。
func NewTracing(ctx context.Context, meta configloader.ServiceMetadata, c *configloader.Observability, logger log.Logger) (*Tracing, func(), error) {
	return newTracing(ctx, meta, c, os.Stdout, logger)
}

func newTracing(ctx context.Context, meta configloader.ServiceMetadata, c *configloader.Observability, out io.Writer, logger log.Logger) (*Tracing, func(), error) {
	helper := log.NewHelper(logger)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if c == nil || !c.Tracing.Enabled {
		helper.Info("telemetry: tracing disabled")
		return &Tracing{}, func() {}, nil
	}
	tc := c.Tracing

	ratio := tc.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(serviceResource(meta)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	switch tc.Exporter {
	case "":
	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{}
		if tc.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(tc.Endpoint))
		}
		if tc.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	default:
		return nil, nil, fmt.Errorf("telemetry: unknown trace exporter %q", tc.Exporter)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	helper.Infof("telemetry: tracing enabled: exporter=%q sample_ratio=%.2f", tc.Exporter, ratio)

	return &Tracing{provider: provider}, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			helper.Warnf("telemetry: shutdown tracer provider: %v", err)
		}
	}, nil
}

// Enabled 报告是否安装了 TracerProvider。
func (t *Tracing) Enabled() bool { return t != nil && t.provider != nil }

// Provider 返回供中间件使用的 TracerProvider，未启用时退回全局实现。
func (t *Tracing) Provider() trace.TracerProvider {
	if t.Enabled() {
		return t.provider
	}
	return otel.GetTracerProvider()
}
