// Package adapters 把基础设施组件绑定到服务层端口，并按配置选择可选实现。
package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-moderation/internal/clients"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/events"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/gcs"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/s3store"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/vectorstore"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// 发布驱动。
const (
	PublishDriverS3   = "s3"
	PublishDriverGCS  = "gcs"
	PublishDriverNone = "none"
)

// ProviderSet 暴露端口绑定与可选实现的选择器。
var ProviderSet = wire.NewSet(
	ProvidePublisher,
	ProvideIndexer,
	ProvideEventPublisher,
	wire.Bind(new(services.VideoStore), new(*repositories.VideoRepository)),
	wire.Bind(new(services.ObjectStager), new(*s3store.Stager)),
	wire.Bind(new(services.ModerationClient), new(*clients.RekognitionClient)),
	wire.Bind(new(services.Notifier), new(*realtime.Hub)),
)

// ProvidePublisher 按 Driver 选择公开发布实现；none 或留空时返回 nil，审核通过的视频保留临时地址。
func ProvidePublisher(ctx context.Context, client *s3.Client, stager *s3store.Stager, storage *configloader.Storage, publish *configloader.Publish, logger log.Logger) (services.Publisher, func(), error) {
	helper := log.NewHelper(logger)
	driver := ""
	if publish != nil {
		driver = strings.ToLower(strings.TrimSpace(publish.Driver))
	}
	switch driver {
	case "", PublishDriverNone:
		helper.Info("adapters: publish driver not configured; approved videos keep temporary urls")
		return nil, func() {}, nil
	case PublishDriverS3:
		p, err := s3store.NewPublisher(client, storage, publish, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	case PublishDriverGCS:
		gclient, cleanup, err := gcs.NewStorageClient(ctx, publish, logger)
		if err != nil {
			return nil, nil, err
		}
		p, err := gcs.NewPublisher(stager, gcs.StorageWriter(gclient), publish, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return p, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("adapters: unknown publish driver %q", driver)
	}
}

// ProvideIndexer 把可能为空的 *vectorstore.Store 转为端口接口，避免 typed nil。
func ProvideIndexer(store *vectorstore.Store) services.VectorIndexer {
	if store == nil {
		return nil
	}
	return store
}

// ProvideEventPublisher 把事件发布器转为端口接口，未配置时为 nil。
func ProvideEventPublisher(p events.Publisher) services.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
