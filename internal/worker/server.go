package worker

import (
	"context"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra/queue"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/handlers"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 后台任务服务器
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 Worker 服务器
func NewServer(redisCfg *config.RedisConfig, auditCfg config.AuditConfig, generator handlers.ReportGenerator, logger *zap.Logger) *Server {
	concurrency := auditCfg.WorkerConcurrent
	if concurrency <= 0 {
		concurrency = 4
	}

	srv := asynq.NewServer(
		infra.AsynqRedisOpt(redisCfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueueName(auditCfg): 6,
				"default":                 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	reportHandler := handlers.NewReportHandler(generator, logger)
	mux.HandleFunc(tasks.TypeGenerateReport, reportHandler.HandleGenerateReport)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run 阻塞运行
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
