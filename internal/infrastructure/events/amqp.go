package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/retrypolicy"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher 通过 RabbitMQ topic exchange 发布事件，连接断开时在下次发布前重连。
type AMQPPublisher struct {
	url        string
	exchange   string
	routingKey string
	policy     retrypolicy.Policy
	log        *log.Helper

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher 创建发布端并建立首个连接。
func NewAMQPPublisher(c configloader.AMQP, logger log.Logger) (*AMQPPublisher, error) {
	if c.URL == "" {
		return nil, errors.New("events: amqp url is required")
	}
	p := &AMQPPublisher{
		url:        c.URL,
		exchange:   c.Exchange,
		routingKey: c.RoutingKey,
		policy:     retrypolicy.Default,
		log:        log.NewHelper(logger),
	}
	if p.routingKey == "" {
		p.routingKey = vo.EventTypeModerationCompleted
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connectLocked() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.closeLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("events: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("events: amqp channel: %w", err)
	}
	if p.exchange != "" {
		if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("events: declare exchange %s: %w", p.exchange, err)
		}
	}
	p.conn, p.ch = conn, ch
	return nil
}

// PublishModerationCompleted 发布持久化消息。
func (p *AMQPPublisher) PublishModerationCompleted(ctx context.Context, event vo.ModerationCompletedEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	pub := newPublishing(msg, event.OccurredAt)
	err = retrypolicy.Do(ctx, p.policy, func(ctx context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.connectLocked(); err != nil {
			return err
		}
		return p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, pub)
	})
	if err != nil {
		return fmt.Errorf("events: amqp publish: %w", err)
	}
	p.log.WithContext(ctx).Debugf("events: published: exchange=%s key=%s event_id=%s", p.exchange, p.routingKey, msg.ID)
	return nil
}

func newPublishing(msg message, occurredAt time.Time) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Attributes {
		headers[k] = v
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         vo.EventTypeModerationCompleted,
		Timestamp:    occurredAt,
		Headers:      headers,
		Body:         msg.Data,
	}
}

// Close 关闭通道与连接。
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.log.Warnf("events: close amqp connection: %v", err)
		}
		p.conn = nil
	}
}
