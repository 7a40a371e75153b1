package moderation

import (
	"context"
	"errors"
	"sync"
)

// Server 把 Poller 适配为 kratos transport.Server，随应用启停。
type Server struct {
	poller *Poller

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer 创建 Server。
func NewServer(poller *Poller) *Server {
	return &Server{poller: poller}
}

// Start 阻塞运行轮询直到 Stop 或 ctx 取消。
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("moderation poller already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer close(done)
	return s.poller.Run(runCtx)
}

// Stop 取消轮询并等待当前视频处理结束。
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
