package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/realtime"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// 测试令牌即用户 ID，"bad" 视为无效。
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if token == "" || token == "bad" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

func startServer(t *testing.T) (*realtime.Hub, string) {
	t.Helper()
	hub := newHub(nil)
	cfg := &configloader.Realtime{
		SendBuffer: 16,
		WriteWait:  configloader.Duration(time.Second),
		PongWait:   configloader.Duration(5 * time.Second),
		PingPeriod: configloader.Duration(time.Second),
	}
	extract := func(r *http.Request) string { return r.URL.Query().Get("token") }
	srv := httptest.NewServer(realtime.NewHandler(hub, stubVerifier{}, extract, cfg, log.NewStdLogger(io.Discard)))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f realtime.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestHandler_RejectsInvalidToken(t *testing.T) {
	_, base := startServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_EndToEnd(t *testing.T) {
	hub, base := startServer(t)

	alice := dial(t, base, "alice")
	require.Equal(t, realtime.EventOnlineUsers, readFrame(t, alice).Event)

	bob := dial(t, base, "bob")
	bobList := readFrame(t, bob)
	require.Equal(t, realtime.EventOnlineUsers, bobList.Event)
	require.JSONEq(t, `{"users":["alice"]}`, string(bobList.Data))

	online := readFrame(t, alice)
	require.Equal(t, realtime.EventUserOnline, online.Event)
	require.JSONEq(t, `{"userId":"bob"}`, string(online.Data))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"send-message","to":"bob","data":{"text":"hello"}}`)))
	msg := readFrame(t, bob)
	require.Equal(t, realtime.EventReceiveMessage, msg.Event)
	require.Equal(t, "alice", msg.From)
	require.JSONEq(t, `{"text":"hello"}`, string(msg.Data))

	require.True(t, hub.Notify(t.Context(), "bob", "moderation-result", map[string]string{"status": "approved"}))
	result := readFrame(t, bob)
	require.Equal(t, "moderation-result", result.Event)
	require.JSONEq(t, `{"status":"approved"}`, string(result.Data))

	require.NoError(t, bob.Close())
	offline := readFrame(t, alice)
	require.Equal(t, realtime.EventUserOffline, offline.Event)
	require.Eventually(t, func() bool {
		_, ok := hub.Registry().Lookup("bob")
		return !ok
	}, timeout, tick)
}

func TestHandler_StopClosesSessionsAndRejectsNew(t *testing.T) {
	hub, base := startServer(t)
	alice := dial(t, base, "alice")
	require.Equal(t, realtime.EventOnlineUsers, readFrame(t, alice).Event)

	require.NoError(t, hub.Stop(context.Background()))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := alice.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
	require.Eventually(t, func() bool { return hub.Registry().Len() == 0 }, timeout, tick)

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bob", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
