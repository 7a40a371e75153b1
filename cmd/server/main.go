// Package main boots the moderation API: upload handoff, queries, the realtime channel and the job poller.
package main

import (
	"context"
	"flag"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"
	"github.com/bionicotaku/lingo-services-moderation/internal/tasks/moderation"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// flagconf is the config flag.
var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "", "config path, eg: -conf configs/config.yaml")
}

func newApp(meta configloader.ServiceMetadata, logger log.Logger, hs *http.Server, hub *realtime.Hub, poller *moderation.Server) *kratos.App {
	return kratos.New(
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			hub,
			poller,
		),
	)
}

func main() {
	flag.Parse()

	ctx := context.Background()
	app, cleanup, err := wireApp(ctx, configloader.Params{ConfPath: flagconf})
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
