package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReportGenerator 报表生成器抽象，便于注入 mock
type ReportGenerator interface {
	GenerateReport(ctx context.Context, reportID string) error
}

// ReportHandler 报表任务处理器
type ReportHandler struct {
	generator ReportGenerator
	logger    *zap.Logger
}

// NewReportHandler 创建报表任务处理器
func NewReportHandler(generator ReportGenerator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{generator: generator, logger: logger}
}

// HandleGenerateReport 处理报表生成任务
// 载荷损坏或报表不存在时不再重试
func (h *ReportHandler) HandleGenerateReport(ctx context.Context, t *asynq.Task) error {
	var p tasks.GenerateReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("解析任务载荷失败: %v: %w", err, asynq.SkipRetry)
	}
	if p.ReportID == "" {
		return fmt.Errorf("任务载荷缺少 report_id: %w", asynq.SkipRetry)
	}

	h.logger.Info("开始生成盘点报表", zap.String("report_id", p.ReportID))
	if err := h.generator.GenerateReport(ctx, p.ReportID); err != nil {
		var notFound *audit.NotFoundError
		if errors.As(err, &notFound) {
			h.logger.Warn("报表或盘点不存在，放弃任务", zap.String("report_id", p.ReportID), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		h.logger.Error("盘点报表生成失败", zap.String("report_id", p.ReportID), zap.Error(err))
		return err
	}
	return nil
}
