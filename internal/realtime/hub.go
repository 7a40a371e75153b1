package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 跨实例信封类型。
const (
	KindDirect    = "direct"
	KindBroadcast = "broadcast"
	// KindClaim 宣告用户已连接到 Origin 实例，其他实例上的旧会话需让位。
	KindClaim = "claim"
)

const (
	defaultBusTimeout  = 2 * time.Second
	resubscribeBackoff = time.Second
)

// Envelope 为跨实例转发的单元，Frame 为已编码的下行帧。
// Instance 非空时只有该实例投递（direct）。
type Envelope struct {
	Origin   string          `json:"origin"`
	Kind     string          `json:"kind"`
	Target   string          `json:"target,omitempty"`
	Instance string          `json:"instance,omitempty"`
	Exclude  string          `json:"exclude,omitempty"`
	Frame    json.RawMessage `json:"frame,omitempty"`
}

// Bus 为多实例部署时共享的在线表与广播通道。
type Bus interface {
	InstanceID() string
	SetPresence(ctx context.Context, userID string) error
	// ClearPresence 仅在在线表仍指向本实例时删除。
	ClearPresence(ctx context.Context, userID string) error
	// Owner 返回持有用户当前会话的实例，离线时为空。
	Owner(ctx context.Context, userID string) (string, error)
	OnlineUsers(ctx context.Context) ([]string, error)
	Publish(ctx context.Context, env Envelope) error
	// Subscribe 阻塞直到 ctx 结束或连接出错，handler 只会收到其他实例的信封。
	Subscribe(ctx context.Context, handler func(Envelope)) error
}

// Hub 为通知分发器：管理会话生命周期、推送通知并转发点对点事件。
type Hub struct {
	registry   *Registry
	bus        Bus
	busTimeout time.Duration
	log        *log.Helper
	metrics    *hubMetrics

	// life 覆盖 Hub 的整个生命周期，Stop 时取消，会话随之关闭。
	life     context.Context
	shutdown context.CancelFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub 创建 Hub。bus 为 nil 时只在本进程内分发。
func NewHub(registry *Registry, bus Bus, logger log.Logger) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	helper := log.NewHelper(logger)
	life, shutdown := context.WithCancel(context.Background())
	return &Hub{
		life:       life,
		shutdown:   shutdown,
		registry:   registry,
		bus:        bus,
		busTimeout: defaultBusTimeout,
		log:        helper,
		metrics:    newHubMetrics(otel.GetMeterProvider().Meter("lingo-services-moderation.realtime"), helper),
	}
}

// Registry 返回底层会话表。
func (h *Hub) Registry() *Registry { return h.registry }

// Context 在 Stop 后取消，会话以它为上下文运行。
func (h *Hub) Context() context.Context { return h.life }

// Activate 登记已认证会话，顶替同一用户的旧连接，广播上线并下发在线列表。
func (h *Hub) Activate(ctx context.Context, s Session) {
	h.metrics.connectionDelta(ctx, 1)
	if prev := h.registry.Register(s); prev != nil {
		h.log.WithContext(ctx).Infof("realtime: replacing stale session: user_id=%s old=%s new=%s", s.UserID(), prev.ID(), s.ID())
		prev.Close()
	}
	if h.bus != nil {
		h.withBus(ctx, func(ctx context.Context) error { return h.bus.SetPresence(ctx, s.UserID()) }, "set presence")
		h.withBus(ctx, func(ctx context.Context) error {
			return h.bus.Publish(ctx, Envelope{Origin: h.bus.InstanceID(), Kind: KindClaim, Target: s.UserID()})
		}, "publish claim")
	}

	if frame, err := EncodeFrame(EventUserOnline, "", UserPresence{UserID: s.UserID()}); err == nil {
		h.broadcast(ctx, frame, s.UserID())
	}
	if frame, err := EncodeFrame(EventOnlineUsers, "", OnlineUsers{Users: h.onlineUsers(ctx, s.UserID())}); err == nil {
		s.Send(frame)
	}
	h.log.WithContext(ctx).Debugf("realtime: session active: user_id=%s session=%s", s.UserID(), s.ID())
}

// Deactivate 在连接关闭时调用；只有仍是当前会话时才移除并广播下线。
func (h *Hub) Deactivate(ctx context.Context, s Session) {
	h.metrics.connectionDelta(ctx, -1)
	if !h.registry.Unregister(s) {
		return
	}
	if h.bus != nil {
		h.withBus(ctx, func(ctx context.Context) error { return h.bus.ClearPresence(ctx, s.UserID()) }, "clear presence")
		if owner, ok := h.owner(ctx, s.UserID()); ok && owner != "" && owner != h.bus.InstanceID() {
			h.log.WithContext(ctx).Debugf("realtime: user reconnected elsewhere, offline suppressed: user_id=%s owner=%s", s.UserID(), owner)
			return
		}
	}
	if frame, err := EncodeFrame(EventUserOffline, "", UserPresence{UserID: s.UserID()}); err == nil {
		h.broadcast(ctx, frame, s.UserID())
	}
	h.log.WithContext(ctx).Debugf("realtime: session closed: user_id=%s session=%s", s.UserID(), s.ID())
}

// Notify 向用户推送事件，不排队不重试；返回是否找到接收方。
func (h *Hub) Notify(ctx context.Context, userID, event string, payload any) bool {
	frame, err := EncodeFrame(event, "", payload)
	if err != nil {
		h.log.WithContext(ctx).Warnf("realtime: drop notification: user_id=%s event=%s err=%v", userID, event, err)
		h.metrics.notification(ctx, false)
		return false
	}
	online, sent := h.deliver(ctx, userID, frame)
	h.metrics.notification(ctx, sent)
	if !online {
		h.log.WithContext(ctx).Debugf("realtime: user offline, notification dropped: user_id=%s event=%s", userID, event)
	}
	return sent
}

// HandleInbound 处理会话上行帧：转发给目标并以发送方身份标记。
func (h *Hub) HandleInbound(ctx context.Context, s Session, raw []byte) {
	in, err := DecodeFrame(raw)
	if err != nil {
		h.log.WithContext(ctx).Debugf("realtime: ignore malformed frame: user_id=%s err=%v", s.UserID(), err)
		return
	}
	outEvent, ok := relayRoutes[in.Event]
	if !ok || in.To == "" {
		h.log.WithContext(ctx).Debugf("realtime: ignore frame: user_id=%s event=%s", s.UserID(), in.Event)
		return
	}
	out, err := EncodeFrame(outEvent, s.UserID(), in.Data)
	if err != nil {
		return
	}
	if online, _ := h.deliver(ctx, in.To, out); online || in.Event != InboundSendMessage {
		return
	}
	if reply, err := EncodeFrame(EventErrorMessage, "", ErrorMessage{Message: ErrRecipientOffline, To: in.To, Event: in.Event}); err == nil {
		s.Send(reply)
	}
}

// deliver 返回接收方是否在线以及帧是否已交出。
// 启用总线时以在线表记录的实例为准：属于其他实例的用户经总线定向转发，本地残留的旧会话被移除。
func (h *Hub) deliver(ctx context.Context, userID string, frame []byte) (online, sent bool) {
	local, hasLocal := h.registry.Lookup(userID)
	if h.bus == nil {
		if !hasLocal {
			return false, false
		}
		return true, h.sendLocal(ctx, local, frame)
	}
	owner, ok := h.owner(ctx, userID)
	if !ok || owner == "" || owner == h.bus.InstanceID() {
		// 在线表不可用或缺少记录时以本地会话为准。
		if !hasLocal {
			return false, false
		}
		return true, h.sendLocal(ctx, local, frame)
	}
	if hasLocal {
		h.evict(ctx, local)
	}
	return true, h.withBus(ctx, func(ctx context.Context) error {
		return h.bus.Publish(ctx, Envelope{Origin: h.bus.InstanceID(), Kind: KindDirect, Target: userID, Instance: owner, Frame: frame})
	}, "publish direct")
}

func (h *Hub) sendLocal(ctx context.Context, s Session, frame []byte) bool {
	if !s.Send(frame) {
		h.log.WithContext(ctx).Warnf("realtime: send buffer full, frame dropped: user_id=%s session=%s", s.UserID(), s.ID())
		return false
	}
	return true
}

// evict 移除已在其他实例重新连接的本地会话，不广播下线。
func (h *Hub) evict(ctx context.Context, s Session) {
	if !h.registry.Unregister(s) {
		return
	}
	h.log.WithContext(ctx).Infof("realtime: session superseded by another instance: user_id=%s session=%s", s.UserID(), s.ID())
	s.Close()
}

func (h *Hub) owner(ctx context.Context, userID string) (string, bool) {
	var owner string
	ok := h.withBus(ctx, func(ctx context.Context) error {
		var err error
		owner, err = h.bus.Owner(ctx, userID)
		return err
	}, "lookup presence")
	return owner, ok
}

func (h *Hub) broadcast(ctx context.Context, frame []byte, exclude string) {
	for _, s := range h.registry.Snapshot(exclude) {
		s.Send(frame)
	}
	if h.bus != nil {
		h.withBus(ctx, func(ctx context.Context) error {
			return h.bus.Publish(ctx, Envelope{Origin: h.bus.InstanceID(), Kind: KindBroadcast, Exclude: exclude, Frame: frame})
		}, "publish broadcast")
	}
}

func (h *Hub) onlineUsers(ctx context.Context, self string) []string {
	set := make(map[string]struct{})
	for _, id := range h.registry.Users() {
		set[id] = struct{}{}
	}
	if h.bus != nil {
		h.withBus(ctx, func(ctx context.Context) error {
			remote, err := h.bus.OnlineUsers(ctx)
			for _, id := range remote {
				set[id] = struct{}{}
			}
			return err
		}, "list presence")
	}
	delete(set, self)
	users := make([]string, 0, len(set))
	for id := range set {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// HandleEnvelope 把其他实例发布的信封投递给本地会话。
func (h *Hub) HandleEnvelope(env Envelope) {
	if h.bus != nil && env.Origin == h.bus.InstanceID() {
		return
	}
	switch env.Kind {
	case KindDirect:
		if h.bus != nil && env.Instance != "" && env.Instance != h.bus.InstanceID() {
			return
		}
		if s, ok := h.registry.Lookup(env.Target); ok {
			s.Send(env.Frame)
		}
	case KindClaim:
		s, ok := h.registry.Lookup(env.Target)
		if !ok {
			return
		}
		ctx := context.Background()
		// 迟到的声明不能顶掉本实例上更新的连接。
		if h.bus != nil {
			if owner, ok := h.owner(ctx, env.Target); ok && owner == h.bus.InstanceID() {
				return
			}
		}
		h.evict(ctx, s)
	case KindBroadcast:
		for _, s := range h.registry.Snapshot(env.Exclude) {
			s.Send(env.Frame)
		}
	}
}

// withBus 以独立超时执行总线操作，失败只记日志。
func (h *Hub) withBus(ctx context.Context, fn func(ctx context.Context) error, op string) bool {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.busTimeout)
	defer cancel()
	if err := fn(callCtx); err != nil {
		h.log.WithContext(ctx).Warnf("realtime: bus %s failed: %v", op, err)
		return false
	}
	return true
}

// Start 订阅跨实例总线直到 Stop；实现 transport.Server。
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return errors.New("realtime: hub already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	defer close(done)
	if h.bus == nil {
		<-runCtx.Done()
		return nil
	}
	h.log.Infof("realtime: subscribing to bus: instance=%s", h.bus.InstanceID())
	for {
		err := h.bus.Subscribe(runCtx, h.HandleEnvelope)
		if runCtx.Err() != nil {
			return nil
		}
		h.log.Warnf("realtime: bus subscription ended, retrying: %v", err)
		select {
		case <-runCtx.Done():
			return nil
		case <-time.After(resubscribeBackoff):
		}
	}
}

// Stop 结束订阅并关闭全部本地会话。
func (h *Hub) Stop(ctx context.Context) error {
	h.shutdown()
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	for _, s := range h.registry.Snapshot("") {
		s.Close()
	}
	return nil
}

type hubMetrics struct {
	connections   metric.Int64UpDownCounter
	notifications metric.Int64Counter
	enabled       bool
}

const (
	metricNameConnections   = "realtime_connections_active"
	metricNameNotifications = "realtime_notifications_total"
)

func newHubMetrics(meter metric.Meter, helper *log.Helper) *hubMetrics {
	m := &hubMetrics{}
	if meter == nil {
		return m
	}
	var err error
	if m.connections, err = meter.Int64UpDownCounter(metricNameConnections,
		metric.WithDescription("Number of open realtime sessions")); err != nil {
		helper.Warnf("realtime metrics: register connections: %v", err)
		return m
	}
	if m.notifications, err = meter.Int64Counter(metricNameNotifications,
		metric.WithDescription("Notifications by delivery result")); err != nil {
		helper.Warnf("realtime metrics: register notifications: %v", err)
		return m
	}
	m.enabled = true
	return m
}

func (m *hubMetrics) connectionDelta(ctx context.Context, delta int64) {
	if m == nil || !m.enabled {
		return
	}
	m.connections.Add(ctx, delta)
}

func (m *hubMetrics) notification(ctx context.Context, delivered bool) {
	if m == nil || !m.enabled {
		return
	}
	result := "dropped"
	if delivered {
		result = "delivered"
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
