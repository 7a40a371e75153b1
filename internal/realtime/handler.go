package realtime

import (
	"net/http"
	"net/url"
	"strings"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// TokenVerifier 校验握手令牌并返回用户 ID。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TokenExtractor 从握手请求中取出令牌。
type TokenExtractor func(r *http.Request) string

// Handler 完成 WebSocket 握手：认证通过后才升级连接。
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	extract  TokenExtractor
	upgrader websocket.Upgrader
	cfg      ClientConfig
	log      *log.Helper
}

// NewHandler 创建握手处理器。
func NewHandler(hub *Hub, verifier TokenVerifier, extract TokenExtractor, c *configloader.Realtime, logger log.Logger) *Handler {
	cfg := ClientConfig{
		SendBuffer:      c.SendBuffer,
		WriteWait:       c.WriteWait.Std(),
		PongWait:        c.PongWait.Std(),
		PingPeriod:      c.PingPeriod.Std(),
		MaxMessageBytes: c.MaxMessageBytes,
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		extract:  extract,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(c.AllowedOrigins),
		},
		cfg: cfg,
		log: log.NewHelper(logger),
	}
}

// ServeHTTP 实现 http.Handler。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 会话跟随 Hub 的生命周期而不是握手请求。
	life := h.hub.Context()
	if life.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	userID, err := h.verifier.Verify(h.extract(r))
	if err != nil {
		h.log.WithContext(r.Context()).Debugf("realtime: handshake rejected: remote=%s err=%v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).Warnf("realtime: upgrade failed: user_id=%s err=%v", userID, err)
		return
	}
	client := newClient(h.hub, conn, userID, h.cfg)
	go client.run(life)
}

// originChecker 为空列表时放行全部来源，"*" 同样放行。
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
