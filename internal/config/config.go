package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 为空时不启用 Redis，会话与缓存退回内存实现
	Enabled bool `mapstructure:"enabled"`

	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 返回单节点地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 文件输出时单文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"` // 会话与令牌同时过期
}

// AuditConfig 盘点业务配置
type AuditConfig struct {
	ReportDir        string        `mapstructure:"report_dir"`         // 报表输出目录
	RollupCacheTTL   time.Duration `mapstructure:"rollup_cache_ttl"`   // 汇总缓存时间，0 表示不缓存
	VerifyLockTTL    time.Duration `mapstructure:"verify_lock_ttl"`    // 单资产核查锁过期时间
	SnapshotBatch    int           `mapstructure:"snapshot_batch"`     // 快照批量写入大小
	ReportQueue      string        `mapstructure:"report_queue"`       // 报表任务队列名
	WorkerConcurrent int           `mapstructure:"worker_concurrency"` // Worker 并发数
}

// TelemetryConfig 链路追踪配置
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP/HTTP 地址，为空时不启用
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

var globalConfig *Config

// setDefaults 设置默认值，配置文件与环境变量均可覆盖
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "asset_audit")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "asset_audit.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "hospital-asset-audit")
	v.SetDefault("auth.access_expiry", "2h")

	v.SetDefault("audit.report_dir", "./reports")
	v.SetDefault("audit.rollup_cache_ttl", "30s")
	v.SetDefault("audit.verify_lock_ttl", "5s")
	v.SetDefault("audit.snapshot_batch", 200)
	v.SetDefault("audit.report_queue", "reports")
	v.SetDefault("audit.worker_concurrency", 4)

	v.SetDefault("telemetry.service_name", "hospital-asset-audit")
	v.SetDefault("telemetry.environment", "dev")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 读取配置文件，未指定路径时允许文件不存在（仅使用默认值与环境变量）
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
