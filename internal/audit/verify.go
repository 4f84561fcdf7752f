package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VerifyInput 单个资产的核查结果
type VerifyInput struct {
	PhysicalStatus    PhysicalStatus `json:"physicalStatus" validate:"required,oneof=found not_found damaged excess"`
	LocationMatched   *bool          `json:"locationMatched" validate:"required"`
	AuditorRemark     string         `json:"auditorRemark" validate:"max=2000"`
	DiscrepancyReason string         `json:"discrepancyReason" validate:"max=2000"`
}

// VerifyResult 核查后的记录与最新整体进度
type VerifyResult struct {
	Record       AuditAssetRecord `json:"record"`
	OverallStats OverallStats     `json:"overallStats"`
}

func verifyLockKey(auditID, assetKey string) string {
	return fmt.Sprintf("lock:audit:%s:asset:%s", auditID, assetKey)
}

// Verify 记录一次实物核查
// 覆盖当前记录并追加一条核查流水；差异但未填原因时照常保存，在汇总中计入 reasonMissing
func (s *Service) Verify(ctx context.Context, auditID, assetKey string, in VerifyInput, verifiedBy string) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Verify", trace.WithAttributes(
		attribute.String("audit_id", auditID),
		attribute.String("asset_key", assetKey),
	))
	defer span.End()

	in.DiscrepancyReason = strings.TrimSpace(in.DiscrepancyReason)
	in.AuditorRemark = strings.TrimSpace(in.AuditorRemark)
	if err := s.validateInput(in); err != nil {
		s.fail(span, "verify", err)
		return nil, err
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, verifyLockKey(auditID, assetKey), s.lockTTL)
		if err != nil {
			s.fail(span, "verify", err)
			return nil, fmt.Errorf("获取资产核查锁失败: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("释放资产核查锁失败", zap.String("audit_id", auditID), zap.Error(err))
			}
		}()
	}

	var result VerifyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockForUpdate(tx, auditID, "verify", verifiableStatuses...); err != nil {
			return err
		}

		var rec AuditAssetRecord
		err := tx.Where("audit_id = ? AND asset_key = ?", auditID, assetKey).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "asset", Key: assetKey}
		}
		if err != nil {
			return fmt.Errorf("查询盘点资产失败: %w", err)
		}

		now := s.now()
		rec.PhysicalStatus = in.PhysicalStatus
		rec.LocationMatched = in.LocationMatched
		rec.Discrepancy = ComputeDiscrepancy(in.PhysicalStatus, in.LocationMatched)
		rec.DiscrepancyReason = in.DiscrepancyReason
		rec.AuditorRemark = in.AuditorRemark
		rec.VerifiedBy = verifiedBy
		if rec.VerifiedAt == nil {
			rec.VerifiedAt = &now
		}
		rec.LastVerifiedAt = &now
		rec.UpdatedAt = now

		if err := tx.Model(&rec).Select(
			"physical_status", "location_matched", "discrepancy", "discrepancy_reason",
			"auditor_remark", "verified_by", "verified_at", "last_verified_at", "updated_at",
		).Updates(&rec).Error; err != nil {
			return fmt.Errorf("更新核查记录失败: %w", err)
		}

		entry := VerificationHistoryEntry{
			AuditID:           auditID,
			AssetKey:          assetKey,
			PhysicalStatus:    rec.PhysicalStatus,
			LocationMatched:   rec.LocationMatched,
			Discrepancy:       rec.Discrepancy,
			DiscrepancyReason: rec.DiscrepancyReason,
			AuditorRemark:     rec.AuditorRemark,
			VerifiedAt:        now,
			VerifiedBy:        verifiedBy,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("写入核查流水失败: %w", err)
		}

		records, err := loadRecords(tx, auditID)
		if err != nil {
			return err
		}
		result = VerifyResult{Record: rec, OverallStats: ComputeOverallStats(records)}
		return nil
	})
	if err != nil {
		s.fail(span, "verify", err)
		return nil, err
	}

	metrics.RecordVerification(string(in.PhysicalStatus), result.Record.Discrepancy)
	log := logger.WithContext(ctx)
	if result.Record.ReasonMissing() {
		log.Warn("差异资产未填写原因",
			zap.String("audit_id", auditID),
			zap.String("asset_key", assetKey),
			zap.String("physical_status", string(in.PhysicalStatus)),
		)
	} else {
		log.Debug("资产已核查",
			zap.String("audit_id", auditID),
			zap.String("asset_key", assetKey),
			zap.String("physical_status", string(in.PhysicalStatus)),
		)
	}
	return &result, nil
}

// loadRecords 一次查询读出盘点的全部记录，汇总基于同一快照计算
func loadRecords(db *gorm.DB, auditID string) ([]AuditAssetRecord, error) {
	var records []AuditAssetRecord
	if err := db.Where("audit_id = ?", auditID).Order("asset_key ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询盘点资产失败: %w", err)
	}
	return records, nil
}
