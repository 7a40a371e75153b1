// Package logger 构造带服务元信息与 trace 关联字段的 Kratos Logger。
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel/trace"
)

// ProviderSet 提供 log.Logger。
var ProviderSet = wire.NewSet(ProvideLogger)

// Config captures runtime metadata used to annotate logs.
type Config struct {
	Service string
	Version string
	HostID  string
	Env     string
	Level   string
	Output  io.Writer
}

// NewLogger builds a Kratos-compatible logger with trace/span enrichment.
func NewLogger(cfg Config) log.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	base := log.With(
		log.NewStdLogger(out),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", cfg.Service,
		"service.version", cfg.Version,
		"service.id", cfg.HostID,
		"env", cfg.Env,
		"trace_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasTraceID() {
				return sc.TraceID().String()
			}
			return ""
		}),
		"span_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasSpanID() {
				return sc.SpanID().String()
			}
			return ""
		}),
	)
	return log.NewFilter(base, log.FilterLevel(ParseLevel(cfg.Level)))
}

// ParseLevel 将配置中的级别字符串转换为 log.Level，未知值回退 INFO。
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "fatal":
		return log.LevelFatal
	default:
		return log.LevelInfo
	}
}

// ProvideLogger 根据服务元信息与可观测性配置构造 Logger。
func ProvideLogger(meta configloader.ServiceMetadata, obs *configloader.Observability) log.Logger {
	level := ""
	if obs != nil {
		level = obs.LogLevel
	}
	return NewLogger(Config{
		Service: meta.Name,
		Version: meta.Version,
		HostID:  meta.InstanceID,
		Env:     meta.Environment,
		Level:   level,
	})
}
