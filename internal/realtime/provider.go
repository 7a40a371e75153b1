package realtime

import (
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/auth"

	"github.com/google/wire"
)

// ProviderSet 暴露会话表、分发器与握手处理器。
var ProviderSet = wire.NewSet(
	NewRegistry,
	NewHub,
	NewHandler,
	ProvideTokenExtractor,
	wire.Bind(new(TokenVerifier), new(*auth.TokenVerifier)),
)

// ProvideTokenExtractor 使用 Bearer 头或 token 查询参数。
func ProvideTokenExtractor() TokenExtractor {
	return auth.TokenFromRequest
}
