package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained 在等待时间内未拿到锁
var ErrLockNotObtained = errors.New("未能获取锁")

// Lock 已持有的锁
type Lock interface {
	Release(ctx context.Context) error
}

// Locker 按 key 加互斥锁，等待时间有上限
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker 基于 redislock 的分布式锁，多实例部署时使用
type RedisLocker struct {
	client  *redislock.Client
	backoff time.Duration
}

// NewRedisLocker 创建分布式锁
func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), backoff: 50 * time.Millisecond}
}

// Obtain 获取锁，在 ttl 内按固定间隔重试
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	retries := int(ttl / l.backoff)
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("获取分布式锁失败: %w", err)
	}
	return lock, nil
}

// LocalLocker 进程内锁，单实例或未启用 Redis 时使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

// localSlot 单个 key 的锁槽，refs 为持有者与等待者之和，归零时移除
type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) acquireSlot(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 && l.slots[key] == s {
		delete(l.slots, key)
	}
}

// Obtain 获取锁，最多等待 ttl
func (l *LocalLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	s := l.acquireSlot(key)
	timer := time.NewTimer(ttl)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return &localLock{locker: l, key: key, slot: s}, nil
	case <-timer.C:
		l.releaseSlot(key, s)
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, ctx.Err()
	}
}

type localLock struct {
	once   sync.Once
	locker *LocalLocker
	key    string
	slot   *localSlot
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		<-l.slot.ch
		l.locker.releaseSlot(l.key, l.slot)
	})
	return nil
}
