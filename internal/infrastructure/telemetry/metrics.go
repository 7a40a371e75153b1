// Package telemetry 安装全局 MeterProvider 与 TracerProvider，并通过 Prometheus 暴露指标。
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ProviderSet 暴露指标与链路追踪组件。
var ProviderSet = wire.NewSet(NewMetrics, NewTracing)

// Metrics 持有 MeterProvider 与抓取端点。
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	path     string
}

// NewMetrics 在启用时安装全局 MeterProvider；禁用时返回空 Metrics，指标调用退化为 no-op。
func NewMetrics(meta configloader.ServiceMetadata, c *configloader.Observability, logger log.Logger) (*Metrics, func(), error) {
	helper := log.NewHelper(logger)
	if c == nil || !c.MetricsEnabled {
		helper.Info("telemetry: metrics disabled")
		return &Metrics{}, func() {}, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(serviceResource(meta)),
	)
	otel.SetMeterProvider(provider)

	m := &Metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		path:     c.MetricsPath,
	}
	helper.Infof("telemetry: metrics enabled: path=%s", m.path)
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			helper.Warnf("telemetry: shutdown meter provider: %v", err)
		}
	}, nil
}

// Enabled 报告是否暴露抓取端点。
func (m *Metrics) Enabled() bool { return m != nil && m.handler != nil }

// Path 返回抓取路径。
func (m *Metrics) Path() string { return m.path }

// Handler 返回 Prometheus 抓取处理器。
func (m *Metrics) Handler() http.Handler { return m.handler }

func serviceResource(meta configloader.ServiceMetadata) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", meta.Name),
		attribute.String("service.version", meta.Version),
		attribute.String("service.instance.id", meta.InstanceID),
		attribute.String("deployment.environment", meta.Environment),
	)
}
