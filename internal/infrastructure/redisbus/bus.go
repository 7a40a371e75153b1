// Package redisbus 以 Redis 哈希保存跨实例在线表，并通过 PUBLISH/SUBSCRIBE 转发推送。
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// clearScript 只有在线表仍指向本实例时才删除，避免误删其他实例上的新连接。
var clearScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// Bus 实现 realtime.Bus。
type Bus struct {
	client      *redis.Client
	instance    string
	channel     string
	presenceKey string
	log         *log.Helper
}

// NewClient 连接 Redis；Addr 为空时返回 nil 表示单实例模式。
func NewClient(c *configloader.Realtime, logger log.Logger) (*redis.Client, func(), error) {
	helper := log.NewHelper(logger)
	if c == nil || c.Redis.Addr == "" {
		helper.Info("redis: addr not configured; realtime runs in single-instance mode")
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping %s: %w", c.Redis.Addr, err)
	}
	helper.Infof("redis: connected: addr=%s db=%d", c.Redis.Addr, c.Redis.DB)
	return client, func() {
		if err := client.Close(); err != nil {
			helper.Warnf("redis: close client: %v", err)
		}
	}, nil
}

// NewBus 创建 Bus。
func NewBus(client *redis.Client, instanceID, channel, presenceKey string, logger log.Logger) (*Bus, error) {
	switch {
	case client == nil:
		return nil, errors.New("redisbus: client is required")
	case instanceID == "":
		return nil, errors.New("redisbus: instance id is required")
	case channel == "" || presenceKey == "":
		return nil, errors.New("redisbus: channel and presence key are required")
	}
	return &Bus{
		client:      client,
		instance:    instanceID,
		channel:     channel,
		presenceKey: presenceKey,
		log:         log.NewHelper(logger),
	}, nil
}

// InstanceID 实现 realtime.Bus。
func (b *Bus) InstanceID() string { return b.instance }

// SetPresence 把用户指向本实例，覆盖其他实例上的旧记录。
func (b *Bus) SetPresence(ctx context.Context, userID string) error {
	return b.client.HSet(ctx, b.presenceKey, userID, b.instance).Err()
}

// ClearPresence 实现 realtime.Bus。
func (b *Bus) ClearPresence(ctx context.Context, userID string) error {
	return clearScript.Run(ctx, b.client, []string{b.presenceKey}, userID, b.instance).Err()
}

// Owner 实现 realtime.Bus，用户离线时返回空串。
func (b *Bus) Owner(ctx context.Context, userID string) (string, error) {
	owner, err := b.client.HGet(ctx, b.presenceKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

// OnlineUsers 实现 realtime.Bus。
func (b *Bus) OnlineUsers(ctx context.Context) ([]string, error) {
	return b.client.HKeys(ctx, b.presenceKey).Result()
}

// Publish 实现 realtime.Bus。
func (b *Bus) Publish(ctx context.Context, env realtime.Envelope) error {
	if env.Origin == "" {
		env.Origin = b.instance
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisbus: marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe 实现 realtime.Bus，跳过本实例发布的信封。
func (b *Bus) Subscribe(ctx context.Context, handler func(realtime.Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redisbus: subscribe %s: %w", b.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redisbus: subscription closed")
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				b.log.Warnf("redisbus: drop envelope: %v", err)
				continue
			}
			if env.Origin == b.instance {
				continue
			}
			handler(env)
		}
	}
}

// Release 删除仍指向本实例的全部在线记录，实例下线时调用。
func (b *Bus) Release(ctx context.Context) error {
	entries, err := b.client.HGetAll(ctx, b.presenceKey).Result()
	if err != nil {
		return err
	}
	for userID, owner := range entries {
		if owner != b.instance {
			continue
		}
		if err := b.ClearPresence(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func decodeEnvelope(payload string) (realtime.Envelope, error) {
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return realtime.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case realtime.KindDirect, realtime.KindBroadcast, realtime.KindClaim:
	default:
		return realtime.Envelope{}, fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
	return env, nil
}
