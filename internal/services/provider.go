package services

import (
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/google/wire"
)

// ProviderSet 暴露服务层构造器。
var ProviderSet = wire.NewSet(
	ProvideSubmissionConfig,
	ProvideModerationConfig,
	NewSubmissionService,
	NewModerationService,
	NewVideoQueryService,
	wire.Struct(new(ModerationDeps), "*"),
)

// ProvideSubmissionConfig 从存储配置推导提交参数。
func ProvideSubmissionConfig(c *configloader.Storage) SubmissionConfig {
	if c == nil {
		return SubmissionConfig{}
	}
	return SubmissionConfig{
		PresignTTL:     c.PresignTTL.Std(),
		MaxUploadBytes: c.MaxUploadBytes,
	}
}

// ProvideModerationConfig 从审核配置推导判定参数。
func ProvideModerationConfig(c *configloader.Moderation) ModerationConfig {
	if c == nil {
		return ModerationConfig{}
	}
	return ModerationConfig{
		Policy: PolicyConfig{
			RejectThreshold:  c.RejectThreshold,
			FlagThreshold:    c.FlagThreshold,
			RejectCategories: c.RejectCategories,
			FlagCategories:   c.FlagCategories,
		},
		EmbeddingDims:  c.EmbeddingDims,
		MaxPendingAge:  c.MaxPendingAge.Std(),
		PublishTimeout: c.PublishTimeout.Std(),
		WriteTimeout:   c.WriteTimeout.Std(),
	}
}
