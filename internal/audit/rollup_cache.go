package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RollupCache 按 (auditID, revision) 缓存汇总结果
// 每次写操作都会提升 revision，旧版本的缓存不会再被命中
type RollupCache interface {
	Get(ctx context.Context, auditID string, revision int64) (*Rollup, bool)
	Set(ctx context.Context, auditID string, revision int64, rollup *Rollup)
}

// RedisRollupCache Redis 实现
type RedisRollupCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRollupCache 创建汇总缓存
func NewRedisRollupCache(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisRollupCache {
	return &RedisRollupCache{rdb: rdb, ttl: ttl, logger: logger}
}

func rollupKey(auditID string, revision int64) string {
	return fmt.Sprintf("audit:rollup:%s:%d", auditID, revision)
}

// Get 读取缓存，出错按未命中处理
func (c *RedisRollupCache) Get(ctx context.Context, auditID string, revision int64) (*Rollup, bool) {
	data, err := c.rdb.Get(ctx, rollupKey(auditID, revision)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RollupCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.RollupCacheTotal.WithLabelValues("error").Inc()
		c.logger.Warn("读取汇总缓存失败", zap.String("audit_id", auditID), zap.Error(err))
		return nil, false
	}

	var r Rollup
	if err := json.Unmarshal(data, &r); err != nil {
		metrics.RollupCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.RollupCacheTotal.WithLabelValues("hit").Inc()
	return &r, true
}

// Set 写入缓存，失败只记录日志
func (c *RedisRollupCache) Set(ctx context.Context, auditID string, revision int64, rollup *Rollup) {
	data, err := json.Marshal(rollup)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, rollupKey(auditID, revision), data, c.ttl).Err(); err != nil {
		c.logger.Warn("写入汇总缓存失败", zap.String("audit_id", auditID), zap.Error(err))
	}
}
