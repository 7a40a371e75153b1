// Package metadata 提供请求级元信息在 Context 中的存取工具，供控制器与服务层共享。
package metadata

import (
	"context"
	"net/http"
	"strings"
)

const (
	// HeaderRequestID 为调用方透传的请求 ID。
	HeaderRequestID = "X-Request-Id"
	// HeaderIdempotencyKey 为上传请求的幂等键，仅用于日志关联。
	HeaderIdempotencyKey = "Idempotency-Key"
)

// HandlerMetadata 描述从请求头与鉴权结果解析出的上下文信息。
type HandlerMetadata struct {
	RequestID      string
	IdempotencyKey string
	UserID         string
}

// IsZero 判断 Metadata 是否为空。
func (m HandlerMetadata) IsZero() bool {
	return m.RequestID == "" && m.IdempotencyKey == "" && m.UserID == ""
}

// FromRequest 解析请求头，UserID 由鉴权后单独填写。
func FromRequest(r *http.Request) HandlerMetadata {
	if r == nil {
		return HandlerMetadata{}
	}
	return HandlerMetadata{
		RequestID:      strings.TrimSpace(r.Header.Get(HeaderRequestID)),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	}
}

type ctxKey struct{}

// Inject 将 HandlerMetadata 注入 Context。
func Inject(ctx context.Context, meta HandlerMetadata) context.Context {
	if meta.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext 读取上游注入的 HandlerMetadata。
func FromContext(ctx context.Context) (HandlerMetadata, bool) {
	if ctx == nil {
		return HandlerMetadata{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(HandlerMetadata)
	return meta, ok
}
