package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval 过期会话的清理间隔
const sweepInterval = time.Minute

// MemoryStore 进程内会话存储，未启用 Redis 时使用
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
	stopCh   chan struct{}
	once     sync.Once
}

// NewMemoryStore 创建进程内会话存储并启动过期清理协程
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go m.sweepLoop(sweepInterval)
	return m
}

// Open 保存会话
func (m *MemoryStore) Open(_ context.Context, s *Session) error {
	if s.ID == "" || s.UserID == "" {
		return ErrInvalid
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

// Get 读取会话，过期会话顺带清理
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return &s, nil
}

// Close 关闭会话
func (m *MemoryStore) Close(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep 删除全部已过期会话，返回删除数量
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Stop 停止清理协程
func (m *MemoryStore) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}
