// Package main 提供审核作业轮询器的独立进程入口，便于与 API 分开部署。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/telemetry"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"
	"github.com/bionicotaku/lingo-services-moderation/internal/tasks/moderation"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	_ "go.uber.org/automaxprocs"
)

type moderationTaskApp struct {
	Poller  *moderation.Poller
	Hub     *realtime.Hub
	Bus     realtime.Bus
	Tracing *telemetry.Tracing
	Logger  log.Logger
}

func newModerationTaskApp(logger log.Logger, poller *moderation.Poller, hub *realtime.Hub, bus realtime.Bus, tracing *telemetry.Tracing) *moderationTaskApp {
	return &moderationTaskApp{Poller: poller, Hub: hub, Bus: bus, Tracing: tracing, Logger: logger}
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	app, cleanup, err := wireModerationTask(ctx, configloader.Params{ConfPath: *confFlag})
	if err != nil {
		panic(err)
	}
	defer cleanup()

	helper := log.NewHelper(app.Logger)
	if app.Bus == nil {
		helper.Warn("realtime bus not configured; moderation results cannot reach users connected to the API instances")
	}
	helper.Infof("starting moderation poller: tracing=%t", app.Tracing.Enabled())

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return app.Hub.Start(gctx) })
	g.Go(func() error { return app.Poller.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("moderation poller stopped unexpectedly: %v", err)
		os.Exit(1)
	}
	_ = app.Hub.Stop(context.Background())

	helper.Info("moderation poller stopped")
}
