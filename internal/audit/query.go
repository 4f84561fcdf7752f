package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// AuditDetail 盘点单及其整体进度
type AuditDetail struct {
	Audit
	OverallStats OverallStats `json:"overallStats"`
}

// ListFilter 盘点单查询条件
type ListFilter struct {
	Status     Status
	AuditType  Type
	HospitalID string
	Search     string
	Page       int
	Limit      int
}

// AssetFilter 盘点资产查询条件
type AssetFilter struct {
	Status       PhysicalStatus
	Search       string
	DepartmentID string
	Page         int
	Limit        int
}

// AuditAssetsPage 资产分页与全量汇总
// 科室分组与整体进度始终基于全部记录，不受分页与过滤影响
type AuditAssetsPage struct {
	AuditAssets        []AuditAssetRecord `json:"auditAssets"`
	AssetsByDepartment []DepartmentGroup  `json:"assetsByDepartment"`
	OverallStats       OverallStats       `json:"overallStats"`
	Pagination         common.Pagination  `json:"pagination"`
}

// GetAudit 查询盘点单
func (s *Service) GetAudit(ctx context.Context, auditID string) (*AuditDetail, error) {
	ctx, span := s.tracer.Start(ctx, "audit.GetAudit", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	var detail *AuditDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit, err := findAudit(tx, auditID)
		if err != nil {
			return err
		}
		rollup, err := s.rollup(ctx, tx, audit)
		if err != nil {
			return err
		}
		detail = &AuditDetail{Audit: *audit, OverallStats: rollup.Overall}
		return nil
	})
	if err != nil {
		s.fail(span, "get", err)
		return nil, err
	}
	return detail, nil
}

// ListAudits 分页查询盘点单，按创建时间倒序
func (s *Service) ListAudits(ctx context.Context, f ListFilter) ([]Audit, common.Pagination, error) {
	if f.Status != "" && !IsKnownStatus(f.Status) {
		return nil, common.Pagination{}, &ValidationError{Field: "status", Message: fmt.Sprintf("未知状态 %q", f.Status)}
	}
	if f.AuditType != "" && !IsKnownType(f.AuditType) {
		return nil, common.Pagination{}, &ValidationError{Field: "auditType", Message: fmt.Sprintf("未知盘点类型 %q", f.AuditType)}
	}

	q := s.db.WithContext(ctx).Model(&Audit{}).Scopes(
		common.ByHospital(f.HospitalID),
		common.WithStatus("status", string(f.Status)),
		common.WithStatus("audit_type", string(f.AuditType)),
		common.KeywordSearch(f.Search, "audit_code", "title"),
	)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, common.Pagination{}, fmt.Errorf("统计盘点单失败: %w", err)
	}

	page := common.PaginationRequest{Page: f.Page, Limit: f.Limit}
	audits := make([]Audit, 0)
	if err := q.Scopes(common.Paginate(page)).Order("created_at DESC, id ASC").Find(&audits).Error; err != nil {
		return nil, common.Pagination{}, fmt.Errorf("查询盘点单失败: %w", err)
	}
	return audits, common.NewPagination(page.GetPage(), page.GetLimit(), total), nil
}

// ListAuditAssets 分页查询盘点资产，同时返回全量汇总
func (s *Service) ListAuditAssets(ctx context.Context, auditID string, f AssetFilter) (*AuditAssetsPage, error) {
	ctx, span := s.tracer.Start(ctx, "audit.ListAuditAssets", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	if f.Status != "" && !IsKnownPhysicalStatus(f.Status) {
		err := &ValidationError{Field: "status", Message: fmt.Sprintf("未知核查结果 %q", f.Status)}
		s.fail(span, "list_assets", err)
		return nil, err
	}

	var out *AuditAssetsPage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit, err := findAudit(tx, auditID)
		if err != nil {
			return err
		}
		rollup, err := s.rollup(ctx, tx, audit)
		if err != nil {
			return err
		}

		department := f.DepartmentID
		if department == UnassignedDepartment {
			department = ""
		}
		q := tx.Model(&AuditAssetRecord{}).Where("audit_id = ?", auditID).Scopes(
			common.WithStatus("physical_status", string(f.Status)),
			common.KeywordSearch(f.Search, "asset_key", "asset_name", "expected_location"),
		)
		if f.DepartmentID != "" {
			q = q.Where("department_id = ?", department)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fmt.Errorf("统计盘点资产失败: %w", err)
		}
		page := common.PaginationRequest{Page: f.Page, Limit: f.Limit}
		records := make([]AuditAssetRecord, 0)
		if err := q.Scopes(common.Paginate(page)).Order("asset_key ASC").Find(&records).Error; err != nil {
			return fmt.Errorf("查询盘点资产失败: %w", err)
		}

		out = &AuditAssetsPage{
			AuditAssets:        records,
			AssetsByDepartment: rollup.Departments,
			OverallStats:       rollup.Overall,
			Pagination:         common.NewPagination(page.GetPage(), page.GetLimit(), total),
		}
		return nil
	})
	if err != nil {
		s.fail(span, "list_assets", err)
		return nil, err
	}
	return out, nil
}

// GetAuditSummary 已核查资产按结果分组计数
func (s *Service) GetAuditSummary(ctx context.Context, auditID string, includeZero bool) ([]StatusCount, error) {
	ctx, span := s.tracer.Start(ctx, "audit.GetAuditSummary", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	db := s.db.WithContext(ctx)
	if _, err := findAudit(db, auditID); err != nil {
		s.fail(span, "summary", err)
		return nil, err
	}

	var rows []struct {
		PhysicalStatus PhysicalStatus
		Count          int64
	}
	if err := db.Model(&AuditAssetRecord{}).
		Select("physical_status, COUNT(*) AS count").
		Where("audit_id = ? AND physical_status <> ?", auditID, PhysicalPending).
		Group("physical_status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计核查结果失败: %w", err)
	}

	counts := make(map[PhysicalStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.PhysicalStatus] = r.Count
	}
	return SummarizeCounts(counts, includeZero), nil
}

// ListHistory 核查流水，最新在前；assetKey 为空时返回整个盘点的流水
func (s *Service) ListHistory(ctx context.Context, auditID, assetKey string) ([]VerificationHistoryEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := findAudit(db, auditID); err != nil {
		return nil, err
	}

	q := db.Where("audit_id = ?", auditID)
	if assetKey != "" {
		q = q.Where("asset_key = ?", assetKey)
	}
	entries := make([]VerificationHistoryEntry, 0)
	if err := q.Order("verified_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("查询核查流水失败: %w", err)
	}
	return entries, nil
}

// rollup 读取或计算汇总
// 先读 revision 再读记录：并发写入只会让记录比 revision 新，缓存永远不会保存旧于其 revision 的数据
func (s *Service) rollup(ctx context.Context, tx *gorm.DB, audit *Audit) (*Rollup, error) {
	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, audit.ID, audit.Revision); ok {
			return r, nil
		}
	}

	records, err := loadRecords(tx, audit.ID)
	if err != nil {
		return nil, err
	}
	r := ComputeRollup(records)
	if s.cache != nil {
		s.cache.Set(ctx, audit.ID, audit.Revision, &r)
	}
	return &r, nil
}

func findAudit(db *gorm.DB, auditID string) (*Audit, error) {
	var audit Audit
	if err := db.Where("id = ?", auditID).First(&audit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "audit", Key: auditID}
		}
		return nil, fmt.Errorf("查询盘点单失败: %w", err)
	}
	return &audit, nil
}

// EnsureHospital 校验盘点单属于指定医院，hospitalID 为空时不校验
// 不属于该医院的盘点单按不存在处理
func (s *Service) EnsureHospital(ctx context.Context, auditID, hospitalID string) error {
	if hospitalID == "" {
		return nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&Audit{}).
		Where("id = ? AND hospital_id = ?", auditID, hospitalID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("查询盘点单失败: %w", err)
	}
	if count == 0 {
		return &NotFoundError{Resource: "audit", Key: auditID}
	}
	return nil
}
