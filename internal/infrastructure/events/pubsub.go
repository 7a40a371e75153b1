package events

import (
	"context"
	"errors"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/retrypolicy"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PubSubPublisher 通过 GCP Pub/Sub 发布事件。
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	policy    retrypolicy.Policy
	log       *log.Helper
}

// NewPubSubPublisher 创建发布端。配置 EmulatorEndpoint 时以明文 gRPC 连接模拟器。
func NewPubSubPublisher(ctx context.Context, c configloader.PubSub, logger log.Logger, extra ...option.ClientOption) (*PubSubPublisher, error) {
	if c.ProjectID == "" || c.TopicID == "" {
		return nil, errors.New("events: pubsub project_id and topic_id are required")
	}
	opts := append([]option.ClientOption(nil), extra...)
	if c.EmulatorEndpoint != "" {
		opts = append(opts,
			option.WithEndpoint(c.EmulatorEndpoint),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, c.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: pubsub client: %w", err)
	}
	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(c.TopicID),
		topic:     c.TopicID,
		policy:    retrypolicy.Default,
		log:       log.NewHelper(logger),
	}, nil
}

// PublishModerationCompleted 同步等待服务端确认。
func (p *PubSubPublisher) PublishModerationCompleted(ctx context.Context, event vo.ModerationCompletedEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	var serverID string
	err = retrypolicy.Do(ctx, p.policy, func(ctx context.Context) error {
		res := p.publisher.Publish(ctx, &pubsub.Message{Data: msg.Data, Attributes: msg.Attributes})
		id, getErr := res.Get(ctx)
		serverID = id
		return getErr
	})
	if err != nil {
		return fmt.Errorf("events: publish to %s: %w", p.topic, err)
	}
	p.log.WithContext(ctx).Debugf("events: published: topic=%s event_id=%s message_id=%s", p.topic, msg.ID, serverID)
	return nil
}

// Close 刷新待发消息并关闭客户端。
func (p *PubSubPublisher) Close() {
	p.publisher.Stop()
	if err := p.client.Close(); err != nil {
		p.log.Warnf("events: close pubsub client: %v", err)
	}
}
