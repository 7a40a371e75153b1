package realtime

import (
	"sort"
	"sync"
)

// Session 为一个已认证的连接句柄。
type Session interface {
	// ID 在进程内唯一标识连接。
	ID() string
	UserID() string
	// Send 非阻塞投递，缓冲区满或连接已关闭时返回 false。
	Send(frame []byte) bool
	Close()
}

// Registry 维护 userID → 当前会话，同一用户以最后一次连接为准。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry 创建空的 Registry。
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register 记录会话并返回被替换的旧会话（若有）。
func (r *Registry) Register(s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[s.UserID()]
	r.sessions[s.UserID()] = s
	if prev == s {
		return nil
	}
	return prev
}

// Unregister 仅在条目仍指向 s 时删除，返回是否删除。
func (r *Registry) Unregister(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[s.UserID()]
	if !ok || cur != s {
		return false
	}
	delete(r.sessions, s.UserID())
	return true
}

// Lookup 返回用户当前会话。
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Users 返回本地在线用户，按字典序。
func (r *Registry) Users() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	r.mu.RUnlock()
	sort.Strings(users)
	return users
}

// Snapshot 返回除 exclude 外的全部会话。
func (r *Registry) Snapshot(exclude string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == exclude {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Len 返回本地会话数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
