package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 按模式构造 Redis 客户端（不做连通性检查）
// 支持三种模式: standalone(单节点), sentinel(哨兵), cluster(集群)
func NewRedisClient(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	switch mode(cfg) {
	case "standalone":
		return redis.NewClient(&redis.Options{
			Addr:         cfg.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		}), nil

	case "sentinel":
		if cfg.MasterName == "" || len(cfg.SentinelAddrs) == 0 {
			return nil, fmt.Errorf("哨兵模式需要配置 master_name 和 sentinel_addrs")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
			PoolSize:         cfg.PoolSize,
			MinIdleConns:     cfg.MinIdleConns,
		}), nil

	case "cluster":
		if len(cfg.ClusterAddrs) == 0 {
			return nil, fmt.Errorf("集群模式需要配置 cluster_addrs")
		}
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		}), nil

	default:
		return nil, fmt.Errorf("不支持的 Redis 模式: %s (可选: standalone, sentinel, cluster)", cfg.Mode)
	}
}

// InitRedis 初始化并检查 Redis 连接，未启用时返回 nil
func InitRedis(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		logger.Info("Redis 未启用，会话与缓存使用内存实现")
		return nil, nil
	}

	rdb, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := PingRedis(rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("mode", mode(cfg)))
	return rdb, nil
}

// PingRedis Redis 健康检查
func PingRedis(rdb redis.UniversalClient) error {
	if rdb == nil {
		return fmt.Errorf("Redis 未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// AsynqRedisOpt 根据同一份 Redis 配置生成 asynq 连接参数
func AsynqRedisOpt(cfg *config.RedisConfig) asynq.RedisConnOpt {
	switch mode(cfg) {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
}

func mode(cfg *config.RedisConfig) string {
	if cfg.Mode == "" {
		return "standalone"
	}
	return cfg.Mode
}
