package middleware

import (
	"sync"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"

	"github.com/gin-gonic/gin"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	RequestsPerSecond float64       // 令牌补充速度
	BurstSize         int           // 突发容量
	CleanupInterval   time.Duration // 清理间隔
	IdleTimeout       time.Duration // 客户端空闲多久后清理
}

// DefaultRateLimiterConfig 默认配置，适用于登录等敏感接口
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// clientState 客户端令牌桶
type clientState struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter 按客户端键限流的令牌桶
type RateLimiter struct {
	config  *RateLimiterConfig
	clients map[string]*clientState
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewRateLimiter 创建限流器并启动清理协程
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	state, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientState{tokens: float64(rl.config.BurstSize - 1), lastUpdate: now}
		return rl.config.BurstSize > 0
	}

	state.tokens += now.Sub(state.lastUpdate).Seconds() * rl.config.RequestsPerSecond
	if state.tokens > float64(rl.config.BurstSize) {
		state.tokens = float64(rl.config.BurstSize)
	}
	state.lastUpdate = now

	if state.tokens < 1 {
		return false
	}
	state.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, state := range rl.clients {
				if now.Sub(state.lastUpdate) > rl.config.IdleTimeout {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop 停止限流器
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// RateLimitByClientIP 按客户端 IP 与路由限流
func RateLimitByClientIP(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.FullPath() + ":" + c.ClientIP()) {
			common.AbortWithError(c, common.CodeTooManyRequests, "")
			return
		}
		c.Next()
	}
}
