// Package events 发布 video.moderation.completed 领域事件。
package events

import (
	"context"
	"encoding/json"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
)

// 事件消息属性。
const (
	AttrEventType     = "event_type"
	AttrEventID       = "event_id"
	AttrVideoID       = "video_id"
	AttrSchemaVersion = "schema_version"

	schemaVersion = "v1"
)

// 驱动名称。
const (
	DriverPubSub = "pubsub"
	DriverAMQP   = "amqp"
)

// Publisher 为各驱动共同实现的发布接口。
type Publisher interface {
	PublishModerationCompleted(ctx context.Context, event vo.ModerationCompletedEvent) error
}

type message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

func encode(event vo.ModerationCompletedEvent) (message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return message{}, fmt.Errorf("events: marshal: %w", err)
	}
	return message{
		ID:   event.EventID,
		Data: data,
		Attributes: map[string]string{
			AttrEventType:     vo.EventTypeModerationCompleted,
			AttrEventID:       event.EventID,
			AttrVideoID:       event.VideoID,
			AttrSchemaVersion: schemaVersion,
		},
	}, nil
}

// NewPublisher 按 Driver 选择实现。Driver 为空时返回 nil，表示不发布事件。
func NewPublisher(ctx context.Context, c *configloader.Events, logger log.Logger) (Publisher, func(), error) {
	if c == nil || c.Driver == "" {
		log.NewHelper(logger).Info("events: driver not configured; domain events disabled")
		return nil, func() {}, nil
	}
	switch c.Driver {
	case DriverPubSub:
		p, err := NewPubSubPublisher(ctx, c.PubSub, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case DriverAMQP:
		p, err := NewAMQPPublisher(c.AMQP, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("events: unknown driver %q", c.Driver)
	}
}
