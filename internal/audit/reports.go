package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/metrics"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// queueReport 在状态迁移的同一事务内登记报表任务，未配置调度器时跳过
func (s *Service) queueReport(tx *gorm.DB, auditID string, kind ReportKind) (*AuditReport, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	report := &AuditReport{AuditID: auditID, Kind: kind, Status: ReportQueued}
	if err := tx.Create(report).Error; err != nil {
		return nil, fmt.Errorf("登记报表任务失败: %w", err)
	}
	return report, nil
}

// dispatchReport 事务提交后投递任务，投递失败只标记报表失败，不影响已提交的状态迁移
func (s *Service) dispatchReport(ctx context.Context, report *AuditReport) {
	if report == nil || s.scheduler == nil {
		return
	}
	err := s.scheduler.ScheduleReport(ctx, report.ID)
	if err == nil {
		metrics.ReportTasksTotal.WithLabelValues(string(report.Kind), "queued").Inc()
		return
	}

	metrics.ReportTasksTotal.WithLabelValues(string(report.Kind), "enqueue_failed").Inc()
	logger.WithContext(ctx).Error("报表任务投递失败",
		zap.String("audit_id", report.AuditID),
		zap.String("report_id", report.ID),
		zap.Error(err),
	)
	s.markReport(ctx, report.ID, ReportFailed, "", err.Error())
}

// RequestReport 手动生成报表，任何状态均可
// 未配置调度器时返回 ErrReportQueueDisabled，此时可改用同步导出
func (s *Service) RequestReport(ctx context.Context, auditID string) (*AuditReport, error) {
	if _, err := findAudit(s.db.WithContext(ctx), auditID); err != nil {
		return nil, err
	}
	if s.scheduler == nil {
		return nil, ErrReportQueueDisabled
	}

	var report *AuditReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		report, err = s.queueReport(tx, auditID, ReportManual)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dispatchReport(ctx, report)
	return report, nil
}

// ListReports 查询盘点的报表，最新在前
func (s *Service) ListReports(ctx context.Context, auditID string) ([]AuditReport, error) {
	db := s.db.WithContext(ctx)
	if _, err := findAudit(db, auditID); err != nil {
		return nil, err
	}
	reports := make([]AuditReport, 0)
	if err := db.Where("audit_id = ?", auditID).Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("查询报表失败: %w", err)
	}
	return reports, nil
}

// ExportWorkbook 同步生成报表
func (s *Service) ExportWorkbook(ctx context.Context, auditID string) (*excelize.File, *Audit, error) {
	ctx, span := s.tracer.Start(ctx, "audit.ExportWorkbook", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	var (
		audit   *Audit
		records []AuditAssetRecord
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if audit, err = findAudit(tx, auditID); err != nil {
			return err
		}
		records, err = loadRecords(tx, auditID)
		return err
	})
	if err != nil {
		s.fail(span, "export", err)
		return nil, nil, err
	}

	f, err := BuildWorkbook(audit, records)
	if err != nil {
		return nil, nil, fmt.Errorf("生成报表失败: %w", err)
	}
	return f, audit, nil
}

// GenerateReport 由后台任务调用，生成报表文件并更新报表状态
func (s *Service) GenerateReport(ctx context.Context, reportID string) error {
	start := time.Now()
	var report AuditReport
	if err := s.db.WithContext(ctx).Where("id = ?", reportID).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "report", Key: reportID}
		}
		return fmt.Errorf("查询报表失败: %w", err)
	}
	if report.Status == ReportReady {
		return nil
	}

	path, err := s.writeReport(ctx, &report)
	if err != nil {
		metrics.ReportTasksTotal.WithLabelValues(string(report.Kind), "failed").Inc()
		s.markReport(ctx, reportID, ReportFailed, "", err.Error())
		return err
	}

	metrics.ReportTasksTotal.WithLabelValues(string(report.Kind), "ready").Inc()
	metrics.ReportTaskDuration.Observe(time.Since(start).Seconds())
	s.markReport(ctx, reportID, ReportReady, path, "")
	logger.WithContext(ctx).Info("盘点报表已生成",
		zap.String("audit_id", report.AuditID),
		zap.String("report_id", reportID),
		zap.String("path", path),
	)
	return nil
}

var fileNameReplacer = strings.NewReplacer("/", "-", "\\", "-", "..", "-")

func (s *Service) writeReport(ctx context.Context, report *AuditReport) (string, error) {
	f, audit, err := s.ExportWorkbook(ctx, report.AuditID)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("创建报表目录失败: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s_%s.xlsx",
		audit.HospitalID, audit.AuditCode, report.Kind, s.now().Format("20060102_150405"))
	path := filepath.Join(s.reportDir, fileNameReplacer.Replace(name))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("保存报表失败: %w", err)
	}
	return path, nil
}

func (s *Service) markReport(ctx context.Context, reportID string, status ReportStatus, path, msg string) {
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&AuditReport{}).
		Where("id = ?", reportID).
		Updates(map[string]any{
			"status":     status,
			"file_path":  path,
			"error":      msg,
			"updated_at": s.now(),
		}).Error
	if err != nil {
		s.logger.Error("更新报表状态失败", zap.String("report_id", reportID), zap.Error(err))
	}
}
