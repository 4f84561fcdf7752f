package api

import (
	"errors"
	"net/http"
	"strings"

	assetHandlers "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/api/handlers/asset"
	auditHandlers "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/api/handlers/audit"
	authHandlers "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/api/handlers/auth"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/auth"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/metrics"
	middlewarepkg "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/middleware"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

// devJWTSecret 仅用于本地开发
const devJWTSecret = "dev_jwt_secret_change_in_production"

// AppContainer 应用依赖容器
type AppContainer struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        redis.UniversalClient // 未启用时为 nil
	Users        *auth.IdentityStore
	Sessions     session.Store
	AuthService  *auth.Service
	Assets       *asset.Repository
	AuditService *audit.Service
	LoginLimiter *middlewarepkg.RateLimiter
}

// Handlers 路由处理器集合
type Handlers struct {
	Auth  *authHandlers.AuthHandler
	Audit *auditHandlers.AuditHandler
	Asset *assetHandlers.AssetHandler
}

// NewContainer 组装服务
// scheduler 为 nil 时提交与关闭不会自动生成报表
func NewContainer(cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient, scheduler audit.ReportScheduler) (*AppContainer, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		// 生产模式必须显式配置密钥
		if strings.EqualFold(cfg.Server.Mode, gin.ReleaseMode) {
			return nil, errors.New("auth.jwt_secret 未配置，生产环境禁止使用默认密钥")
		}
		logger.Warn("auth.jwt_secret 未配置，已回退为开发默认值")
		secret = devJWTSecret
	}

	var sessions session.Store
	if rdb != nil {
		sessions = session.NewRedisStore(rdb, "audit:session:")
	} else {
		sessions = session.NewMemoryStore()
	}

	users := auth.NewIdentityStore(db)
	jwtSvc := auth.NewJWTService(secret, cfg.Auth.Issuer, cfg.Auth.AccessExpiry)
	assets := asset.NewRepository(db)

	opts := []audit.ServiceOption{
		audit.WithLogger(logger.Get()),
		audit.WithReportDir(cfg.Audit.ReportDir),
		audit.WithSnapshotBatch(cfg.Audit.SnapshotBatch),
	}
	if rdb != nil {
		opts = append(opts, audit.WithVerifyLocker(infra.NewRedisLocker(rdb), cfg.Audit.VerifyLockTTL))
		if cfg.Audit.RollupCacheTTL > 0 {
			opts = append(opts, audit.WithRollupCache(audit.NewRedisRollupCache(rdb, cfg.Audit.RollupCacheTTL, logger.Get())))
		}
	} else {
		opts = append(opts, audit.WithVerifyLocker(infra.NewLocalLocker(), cfg.Audit.VerifyLockTTL))
	}
	if scheduler != nil {
		opts = append(opts, audit.WithReportScheduler(scheduler))
	}

	return &AppContainer{
		Config:       cfg,
		DB:           db,
		Redis:        rdb,
		Users:        users,
		Sessions:     sessions,
		AuthService:  auth.NewService(users, jwtSvc, sessions, logger.Get()),
		Assets:       assets,
		AuditService: audit.NewService(db, assets, opts...),
		LoginLimiter: middlewarepkg.NewRateLimiter(nil),
	}, nil
}

// Close 停止容器内的后台协程（登录限流与进程内会话清理）
func (c *AppContainer) Close() {
	c.LoginLimiter.Stop()
	if m, ok := c.Sessions.(*session.MemoryStore); ok {
		m.Stop()
	}
}

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(c *AppContainer) *gin.Engine {
	router := gin.New()
	router.Use(
		middlewarepkg.RequestIDMiddleware(),
		Recovery(),
		RequestLogger(),
		CORS(),
		metrics.PrometheusMiddleware(),
	)

	handlers := &Handlers{
		Auth:  authHandlers.NewAuthHandler(c.AuthService),
		Audit: auditHandlers.NewAuditHandler(c.AuditService),
		Asset: assetHandlers.NewAssetHandler(c.Assets),
	}

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(c.DB, c.Redis))
	router.GET("/metrics", metrics.Handler())

	RegisterRoutes(router, c, handlers)
	return router
}

// NewHTTPHandler 为路由加上 OpenTelemetry HTTP 埋点
func NewHTTPHandler(router *gin.Engine, serviceName string) http.Handler {
	return otelhttp.NewHandler(router, serviceName)
}

// Models 需要迁移的全部表
func Models() []any {
	return append(audit.Models(), &asset.Asset{}, &auth.User{})
}
