package controllers

import (
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/auth"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	"github.com/google/wire"
)

// ProviderSet exposes controller/handler constructors for DI.
var ProviderSet = wire.NewSet(
	ProvideHandlerTimeouts,
	ProvideBaseHandler,
	NewVideoHandler,
	wire.Bind(new(Submitter), new(*services.SubmissionService)),
	wire.Bind(new(VideoReader), new(*services.VideoQueryService)),
)

// ProvideHandlerTimeouts 以 HTTP 超时作为上传超时，查询使用较短的超时。
func ProvideHandlerTimeouts(c *configloader.Server) HandlerTimeouts {
	if c == nil {
		return HandlerTimeouts{}
	}
	return HandlerTimeouts{
		Command: c.HTTP.Timeout.Std(),
		Query:   5 * time.Second,
	}
}

// ProvideBaseHandler 组装带 JWT 校验的基础 Handler。
func ProvideBaseHandler(timeouts HandlerTimeouts, verifier *auth.TokenVerifier) *BaseHandler {
	return NewBaseHandler(timeouts, verifier)
}
