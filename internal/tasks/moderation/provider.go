package moderation

import (
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"go.opentelemetry.io/otel"
)

// ProviderSet 暴露轮询器及其 transport.Server 适配。
var ProviderSet = wire.NewSet(ProvideConfig, ProvidePoller, NewServer)

// ProvideConfig 从配置中取轮询参数。
func ProvideConfig(c *configloader.Moderation) Config {
	return Config{
		Interval:    c.PollInterval.Std(),
		BatchSize:   c.BatchSize,
		ItemDelay:   c.ItemDelay.Std(),
		CallTimeout: c.CallTimeout.Std(),
	}
}

// ProvidePoller 使用全局 MeterProvider 构造 Poller。
func ProvidePoller(svc *services.ModerationService, cfg Config, logger log.Logger) (*Poller, error) {
	meter := otel.GetMeterProvider().Meter("lingo-services-moderation.poller")
	return NewPoller(svc, cfg, logger, meter)
}
