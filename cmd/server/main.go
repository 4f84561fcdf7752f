package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/api"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra/queue"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/telemetry"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 0. 加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, os.Getenv("APP_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 链路追踪
	shutdownTracing, err := telemetry.Init(context.Background(), cfg.Telemetry)
	if err != nil {
		logger.Fatal("初始化链路追踪失败", zap.Error(err))
	}

	// 4. 数据库与 Redis
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := infra.AutoMigrate(db, api.Models()...); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}

	rdb, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("初始化 Redis 失败", zap.Error(err))
	}

	// 5. 报表队列：依赖 Redis，未启用时提交与关闭不自动生成报表
	var (
		scheduler    audit.ReportScheduler
		queueClient  *queue.Client
		workerServer *worker.Server
	)
	if rdb != nil {
		queueClient = queue.NewClient(&cfg.Redis, cfg.Audit)
		scheduler = queueClient
	} else {
		logger.Warn("Redis 未启用，报表任务队列已关闭")
	}

	container, err := api.NewContainer(cfg, db, rdb, scheduler)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}
	if queueClient != nil {
		workerServer = worker.NewServer(&cfg.Redis, cfg.Audit, container.AuditService, logger.Get())
		if err := workerServer.Start(); err != nil {
			logger.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}

	// 6. HTTP 服务器
	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(container)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewHTTPHandler(router, cfg.Telemetry.ServiceName),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 7. 优雅关闭
	waitForSignal()
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if workerServer != nil {
		workerServer.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Error("队列客户端关闭异常", zap.Error(err))
		}
	}
	container.Close()
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Redis 关闭异常", zap.Error(err))
		}
	}
	if err := infra.CloseDatabase(); err != nil {
		logger.Error("数据库关闭异常", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("链路追踪关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// loadEnvFile 从当前目录向上查找 .env 文件
func loadEnvFile() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := filepath.Clean(wd)
	for i := 0; i < 8; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
			}
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
