package server

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/telemetry"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"go.opentelemetry.io/otel"
)

// WebSocketPath 为实时通道的握手路径。
const WebSocketPath = "/ws"

// ReadinessChecker 由依赖（数据库）实现，用于 /readyz。
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *configloader.Server, videos *controllers.VideoHandler, ws *realtime.Handler, metrics *telemetry.Metrics, tracer *telemetry.Tracing, ready ReadinessChecker, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(serverMiddleware(tracer, logger)...),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, http.Timeout(c.HTTP.Timeout.Std()))
	}

	srv := http.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))

	srv.Handle("/readyz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready.Ping(ctx); err != nil {
				log.NewHelper(logger).WithContext(ctx).Warnf("readyz: dependency not ready: %v", err)
				w.WriteHeader(stdhttp.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(stdhttp.StatusOK)
	}))

	if metrics.Enabled() {
		srv.Handle(metrics.Path(), metrics.Handler())
	}
	if ws != nil {
		srv.Handle(WebSocketPath, ws)
	}
	if videos != nil {
		videos.Register(srv)
	}
	return srv
}

// serverMiddleware 组装 HTTP 中间件；指标仪表取自全局 MeterProvider，未启用时为 no-op。
// tracing 位于 logging 之前，访问日志带上 trace_id/span_id。
func serverMiddleware(tracer *telemetry.Tracing, logger log.Logger) []middleware.Middleware {
	mws := []middleware.Middleware{
		recovery.Recovery(),
		tracing.Server(tracing.WithTracerProvider(tracer.Provider())),
		metadata.Server(metadata.WithPropagatedPrefix("x-md-")),
	}
	meter := otel.Meter("lingo-services-moderation.http")
	requests, reqErr := kmetrics.DefaultRequestsCounter(meter, kmetrics.DefaultServerRequestsCounterName)
	seconds, secErr := kmetrics.DefaultSecondsHistogram(meter, kmetrics.DefaultServerSecondsHistogramName)
	if reqErr == nil && secErr == nil {
		mws = append(mws, kmetrics.Server(
			kmetrics.WithRequests(requests),
			kmetrics.WithSeconds(seconds),
		))
	} else {
		log.NewHelper(logger).Warnf("http: metrics middleware disabled: requests_err=%v seconds_err=%v", reqErr, secErr)
	}
	return append(mws, logging.Server(logger))
}
