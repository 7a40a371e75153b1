package vectorstore

import (
	"context"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/qdrant/go-client/qdrant"
)

// ProviderSet 暴露 Qdrant 客户端与向量存储。
var ProviderSet = wire.NewSet(NewClient, ProvideStore)

// ProvideStore 在客户端禁用时返回 nil Store。
func ProvideStore(ctx context.Context, client *qdrant.Client, vec *configloader.Vector, mod *configloader.Moderation, logger log.Logger) (*Store, error) {
	if client == nil {
		return nil, nil
	}
	return NewStore(ctx, client, vec.Collection, mod.EmbeddingDims, logger)
}
