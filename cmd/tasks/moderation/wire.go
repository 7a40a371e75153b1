//go:build wireinject
// +build wireinject

// Package main 为 moderation 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-moderation/internal/clients"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/adapters"
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
	"github.com/bionicotaku/lingo-services-moderation/internal/services"
	"github.com/bionicotaku/lingo-services-moderation/internal/tasks/moderation"

	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireModerationTask(context.Context, configloader.Params) (*moderationTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		telemetry.NewTracing,
		database.ProviderSet,
		repositories.ProviderSet,
		s3store.ProviderSet,
		clients.ProviderSet,
		vectorstore.ProviderSet,
		events.NewPublisher,
		redisbus.ProviderSet,
		realtime.NewRegistry,
		realtime.NewHub,
		adapters.ProviderSet,
		services.ProvideModerationConfig,
		services.NewModerationService,
		wire.Struct(new(services.ModerationDeps), "*"),
		moderation.ProvideConfig,
		moderation.ProvidePoller,
		newModerationTaskApp,
	))
}
