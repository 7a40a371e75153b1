// Package realtime 维护在线会话并向用户推送审核结果与点对点消息。
package realtime

import (
	"encoding/json"
	"fmt"
)

// 服务端下发事件。
const (
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventOnlineUsers    = "online-users"
	EventReceiveMessage = "receive-message"
	EventTyping         = "typing"
	EventStopTyping     = "stop-typing"
	EventMessageSeen    = "message-seen"
	EventWebRTCOffer    = "webrtc-offer"
	EventWebRTCAnswer   = "webrtc-answer"
	EventWebRTCICE      = "webrtc-ice-candidate"
	EventErrorMessage   = "error-message"
)

// 客户端上行事件。
const (
	InboundSendMessage = "send-message"
	InboundSeen        = "seen"
)

// ErrRecipientOffline 为聊天目标不在线时回给发送方的错误文本。
const ErrRecipientOffline = "recipient offline"

// relayRoutes 把上行事件映射到下行事件名；只有 send-message 在目标离线时回错。
var relayRoutes = map[string]string{
	InboundSendMessage: EventReceiveMessage,
	EventTyping:        EventTyping,
	EventStopTyping:    EventStopTyping,
	InboundSeen:        EventMessageSeen,
	EventWebRTCOffer:   EventWebRTCOffer,
	EventWebRTCAnswer:  EventWebRTCAnswer,
	EventWebRTCICE:     EventWebRTCICE,
}

// Frame 为 WebSocket 上的 JSON 帧。上行帧用 To 指定目标，下行帧用 From 标记发送方。
type Frame struct {
	Event string          `json:"event"`
	From  string          `json:"from,omitempty"`
	To    string          `json:"to,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserPresence 为 user-online / user-offline 负载。
type UserPresence struct {
	UserID string `json:"userId"`
}

// OnlineUsers 为 online-users 负载。
type OnlineUsers struct {
	Users []string `json:"users"`
}

// ErrorMessage 为 error-message 负载。
type ErrorMessage struct {
	Message string `json:"message"`
	To      string `json:"to,omitempty"`
	Event   string `json:"event,omitempty"`
}

// EncodeFrame 序列化一个下行帧。
func EncodeFrame(event, from string, payload any) ([]byte, error) {
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = json.RawMessage(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("realtime: encode %s payload: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Frame{Event: event, From: from, Data: data})
}

// DecodeFrame 解析上行帧。
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("realtime: decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("realtime: frame without event")
	}
	return f, nil
}
