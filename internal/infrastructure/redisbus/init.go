package redisbus

import (
	"context"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet 暴露 Redis 客户端与跨实例总线。
var ProviderSet = wire.NewSet(NewClient, ProvideBus)

// ProvideBus 在未配置 Redis 时返回 nil 接口，cleanup 释放本实例的在线记录。
func ProvideBus(client *redis.Client, c *configloader.Realtime, meta configloader.ServiceMetadata, logger log.Logger) (realtime.Bus, func(), error) {
	if client == nil {
		return nil, func() {}, nil
	}
	bus, err := NewBus(client, meta.InstanceID, c.Redis.Channel, c.Redis.PresenceKey, logger)
	if err != nil {
		return nil, nil, err
	}
	helper := log.NewHelper(logger)
	return bus, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := bus.Release(ctx); err != nil {
			helper.Warnf("redisbus: release presence: %v", err)
		}
	}, nil
}
