package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnState 为连接生命周期阶段。
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// ClientConfig 控制读写泵的超时与缓冲。
type ClientConfig struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
}

// Client 为一个 WebSocket 会话，实现 Session。
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	cfg    ClientConfig

	mu     sync.Mutex
	state  ConnState
	send   chan []byte
	closed bool
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	return c
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		cfg:    cfg,
		state:  StateAuthenticated,
		send:   make(chan []byte, cfg.SendBuffer),
	}
}

// ID 实现 Session。
func (c *Client) ID() string { return c.id }

// UserID 实现 Session。
func (c *Client) UserID() string { return c.userID }

// State 返回当前阶段。
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send 实现 Session，缓冲区满时丢弃。
func (c *Client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close 实现 Session，可重复调用。写泵发送关闭帧后断开连接。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.state = StateDisconnected
	close(c.send)
}

// run 激活会话并阻塞到连接结束；ctx 取消时主动关闭。
func (c *Client) run(ctx context.Context) {
	c.mu.Lock()
	c.state = StateActive
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	go c.writePump()
	c.hub.Activate(ctx, c)
	c.readPump(ctx)
	c.Close()
	c.hub.Deactivate(ctx, c)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()
	if c.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithContext(ctx).Debugf("realtime: read failed: user_id=%s err=%v", c.userID, err)
			}
			return
		}
		c.hub.HandleInbound(ctx, c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
