//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-moderation/internal/clients"
	"github.com/bionicotaku/lingo-services-moderation/internal/controllers"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/adapters"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/auth"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/events"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/logger"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/redisbus"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/s3store"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/telemetry"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/vectorstore"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"
	"github.com/bionicotaku/lingo-services-moderation/internal/server"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"
	"github.com/bionicotaku/lingo-services-moderation/internal/tasks/moderation"

	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		telemetry.ProviderSet,
		database.ProviderSet,
		repositories.ProviderSet,
		s3store.ProviderSet,
		clients.ProviderSet,
		vectorstore.ProviderSet,
		events.NewPublisher,
		redisbus.ProviderSet,
		auth.NewTokenVerifier,
		realtime.ProviderSet,
		adapters.ProviderSet,
		services.ProviderSet,
		moderation.ProviderSet,
		controllers.ProviderSet,
		server.NewHTTPServer,
		wire.Bind(new(server.ReadinessChecker), new(*repositories.VideoRepository)),
		newApp,
	))
}
