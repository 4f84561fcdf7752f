package audit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SnapshotSource 解析盘点范围内的资产
type SnapshotSource interface {
	ResolveScope(ctx context.Context, tx *gorm.DB, hospitalID string, scope asset.Scope) ([]asset.Asset, error)
}

// ReportScheduler 异步生成报表
type ReportScheduler interface {
	ScheduleReport(ctx context.Context, reportID string) error
}

// Service 盘点服务：状态机、资产核查与汇总
type Service struct {
	db            *gorm.DB
	snapshots     SnapshotSource
	logger        *zap.Logger
	tracer        trace.Tracer
	validate      *validator.Validate
	cache         RollupCache
	locker        infra.Locker
	lockTTL       time.Duration
	scheduler     ReportScheduler
	reportDir     string
	snapshotBatch int
	now           func() time.Time
}

// ServiceOption 自定义配置
type ServiceOption func(*Service)

// WithLogger 注入日志器
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithRollupCache 启用汇总缓存
func WithRollupCache(c RollupCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithVerifyLocker 按 (auditID, assetKey) 串行化核查
func WithVerifyLocker(l infra.Locker, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithReportScheduler 提交与关闭后自动排队生成报表
func WithReportScheduler(r ReportScheduler) ServiceOption {
	return func(s *Service) { s.scheduler = r }
}

// WithReportDir 报表输出目录
func WithReportDir(dir string) ServiceOption {
	return func(s *Service) {
		if dir != "" {
			s.reportDir = dir
		}
	}
}

// WithSnapshotBatch 快照批量写入大小
func WithSnapshotBatch(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.snapshotBatch = n
		}
	}
}

// WithClock 替换时钟（测试使用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService 创建盘点服务
func NewService(db *gorm.DB, snapshots SnapshotSource, opts ...ServiceOption) *Service {
	s := &Service{
		db:            db,
		snapshots:     snapshots,
		logger:        logger.Get(),
		tracer:        otel.Tracer("github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"),
		validate:      newValidator(),
		lockTTL:       5 * time.Second,
		reportDir:     "./reports",
		snapshotBatch: 200,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput 将 validator 的错误转换为 ValidationError
func (s *Service) validateInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("校验失败 (%s)", fe.Tag())
		switch fe.Tag() {
		case "required":
			msg = "必填"
		case "oneof":
			msg = fmt.Sprintf("取值 %q 不在允许范围 [%s]", fmt.Sprint(fe.Value()), fe.Param())
		case "max":
			msg = "长度超过 " + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}

// InitiateInput 发起盘点
type InitiateInput struct {
	AuditCode        string      `json:"auditCode" validate:"required,max=64"`
	HospitalID       string      `json:"hospitalId" validate:"required,max=64"`
	AuditType        Type        `json:"auditType" validate:"required,oneof=statutory internal physical surprise"`
	Title            string      `json:"title" validate:"max=255"`
	Remarks          string      `json:"remarks" validate:"max=2000"`
	Scope            asset.Scope `json:"scope"`
	AssignedAuditors []string    `json:"assignedAuditors" validate:"dive,required,max=64"`
	InitiatedBy      string      `json:"-"`
}

// Initiate 发起盘点：创建盘点单、快照资产并进入 in_progress，三步在同一事务内完成
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*Audit, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Initiate", trace.WithAttributes(
		attribute.String("hospital_id", in.HospitalID),
		attribute.String("audit_code", in.AuditCode),
	))
	defer span.End()

	in.AuditCode = strings.TrimSpace(in.AuditCode)
	if err := s.validateInput(in); err != nil {
		metrics.RecordRejected("initiate", "validation")
		return nil, err
	}

	audit := &Audit{
		AuditCode:        in.AuditCode,
		HospitalID:       in.HospitalID,
		AuditType:        in.AuditType,
		Status:           StatusPending,
		Title:            in.Title,
		Remarks:          in.Remarks,
		InitiatedBy:      in.InitiatedBy,
		AssignedAuditors: datatypes.NewJSONSlice(dedupe(in.AssignedAuditors)),
		CreatedAt:        s.now(),
	}

	var snapshotSize int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&Audit{}).
			Where("hospital_id = ? AND audit_code = ?", in.HospitalID, in.AuditCode).
			Count(&exists).Error; err != nil {
			return fmt.Errorf("检查盘点编号失败: %w", err)
		}
		if exists > 0 {
			return &ConflictError{HospitalID: in.HospitalID, AuditCode: in.AuditCode}
		}

		if err := tx.Create(audit).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{HospitalID: in.HospitalID, AuditCode: in.AuditCode}
			}
			return fmt.Errorf("创建盘点单失败: %w", err)
		}

		assets, err := s.snapshots.ResolveScope(ctx, tx, in.HospitalID, in.Scope)
		if err != nil {
			return err
		}
		records := snapshotRecords(audit.ID, assets)
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, s.snapshotBatch).Error; err != nil {
				return fmt.Errorf("写入资产快照失败: %w", err)
			}
		}
		snapshotSize = len(records)

		return s.transition(tx, audit, StatusInProgress, nil)
	})
	if err != nil {
		s.fail(span, "initiate", err)
		return nil, err
	}

	metrics.AuditSnapshotSize.Observe(float64(snapshotSize))
	logger.WithContext(ctx).Info("盘点已发起",
		zap.String("audit_id", audit.ID),
		zap.String("audit_code", audit.AuditCode),
		zap.String("hospital_id", audit.HospitalID),
		zap.Int("assets", snapshotSize),
	)
	return audit, nil
}

func snapshotRecords(auditID string, assets []asset.Asset) []AuditAssetRecord {
	records := make([]AuditAssetRecord, 0, len(assets))
	for _, a := range assets {
		records = append(records, AuditAssetRecord{
			AuditID:          auditID,
			AssetKey:         a.AssetKey,
			AssetName:        a.Name,
			Category:         a.Category,
			ExpectedLocation: a.Location,
			DepartmentID:     a.DepartmentID,
			DepartmentName:   a.DepartmentName,
			PhysicalStatus:   PhysicalPending,
		})
	}
	return records
}

// Submit 提交盘点，要求全部资产已核查
func (s *Service) Submit(ctx context.Context, auditID string) (*Audit, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Submit", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	var audit *Audit
	var report *AuditReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		audit, err = s.lockForUpdate(tx, auditID, "submit", sourcesOf(StatusCompleted)...)
		if err != nil {
			return err
		}

		var pending int64
		if err := tx.Model(&AuditAssetRecord{}).
			Where("audit_id = ? AND physical_status = ?", auditID, PhysicalPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("统计未核查资产失败: %w", err)
		}
		if pending > 0 {
			return &IncompleteVerificationError{Pending: pending}
		}

		now := s.now()
		if err := s.transition(tx, audit, StatusCompleted, map[string]any{"submitted_at": now}); err != nil {
			return err
		}
		audit.SubmittedAt = &now

		report, err = s.queueReport(tx, auditID, ReportSubmitted)
		return err
	})
	if err != nil {
		s.fail(span, "submit", err)
		return nil, err
	}

	logger.WithContext(ctx).Info("盘点已提交", zap.String("audit_id", auditID))
	s.dispatchReport(ctx, report)
	return audit, nil
}

// Close 关闭盘点，不可逆；从 in_progress 关闭记为 aborted，从 completed 关闭记为 normal
func (s *Service) Close(ctx context.Context, auditID string) (*Audit, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Close", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	var audit *Audit
	var report *AuditReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		audit, err = s.lockForUpdate(tx, auditID, "close", sourcesOf(StatusClosed)...)
		if err != nil {
			return err
		}

		kind := CloseNormal
		if audit.Status == StatusInProgress {
			kind = CloseAborted
		}
		now := s.now()
		if err := s.transition(tx, audit, StatusClosed, map[string]any{"closed_at": now, "close_kind": kind}); err != nil {
			return err
		}
		audit.ClosedAt = &now
		audit.CloseKind = kind

		report, err = s.queueReport(tx, auditID, ReportClosed)
		return err
	})
	if err != nil {
		s.fail(span, "close", err)
		return nil, err
	}

	logger.WithContext(ctx).Info("盘点已关闭",
		zap.String("audit_id", auditID),
		zap.String("close_kind", string(audit.CloseKind)),
	)
	s.dispatchReport(ctx, report)
	return audit, nil
}

// AssignAuditors 替换盘点人员，仅 pending 与 in_progress 状态允许
func (s *Service) AssignAuditors(ctx context.Context, auditID string, auditors []string) (*Audit, error) {
	ctx, span := s.tracer.Start(ctx, "audit.AssignAuditors", trace.WithAttributes(attribute.String("audit_id", auditID)))
	defer span.End()

	in := struct {
		Auditors []string `json:"assignedAuditors" validate:"dive,required,max=64"`
	}{Auditors: auditors}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	var audit *Audit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		audit, err = s.lockForUpdate(tx, auditID, "assign_auditors", assignableStatuses...)
		if err != nil {
			return err
		}
		audit.AssignedAuditors = datatypes.NewJSONSlice(dedupe(auditors))
		if err := tx.Model(&Audit{}).Where("id = ?", auditID).
			Update("assigned_auditors", audit.AssignedAuditors).Error; err != nil {
			return fmt.Errorf("更新盘点人员失败: %w", err)
		}
		return nil
	})
	if err != nil {
		s.fail(span, "assign_auditors", err)
		return nil, err
	}
	return audit, nil
}

// lockForUpdate 以条件更新提升 revision，作为本事务对盘点单的行锁
// 状态检查与后续状态迁移因此串行化，提交或关闭一旦生效，并发的核查只会看到新状态
func (s *Service) lockForUpdate(tx *gorm.DB, auditID, operation string, allowed ...Status) (*Audit, error) {
	res := tx.Model(&Audit{}).
		Where("id = ? AND status IN ?", auditID, allowed).
		Updates(map[string]any{
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("锁定盘点单失败: %w", res.Error)
	}

	var audit Audit
	if err := tx.Where("id = ?", auditID).First(&audit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "audit", Key: auditID}
		}
		return nil, fmt.Errorf("查询盘点单失败: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Operation: operation, Status: audit.Status}
	}
	return &audit, nil
}

// transition 执行一次状态迁移，迁移表之外的组合一律拒绝
func (s *Service) transition(tx *gorm.DB, audit *Audit, to Status, extra map[string]any) error {
	from := audit.Status
	if !canTransition(from, to) {
		return &InvalidStateError{Operation: "transition:" + string(to), Status: from}
	}

	updates := map[string]any{"status": to, "updated_at": s.now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&Audit{}).Where("id = ? AND status = ?", audit.ID, from).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新盘点状态失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvalidStateError{Operation: "transition:" + string(to), Status: from}
	}

	audit.Status = to
	metrics.RecordTransition(string(from), string(to))
	return nil
}

// fail 记录被拒绝的操作，业务错误不计为链路错误
func (s *Service) fail(span trace.Span, operation string, err error) {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		stateErr      *InvalidStateError
		incompleteErr *IncompleteVerificationError
		conflictErr   *ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		metrics.RecordRejected(operation, "validation")
	case errors.As(err, &notFoundErr):
		metrics.RecordRejected(operation, "not_found")
	case errors.As(err, &stateErr):
		metrics.RecordRejected(operation, "invalid_state")
	case errors.As(err, &incompleteErr):
		metrics.RecordRejected(operation, "incomplete")
	case errors.As(err, &conflictErr):
		metrics.RecordRejected(operation, "conflict")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("盘点操作失败", zap.String("operation", operation), zap.Error(err))
		return
	}
	span.SetAttributes(attribute.String("rejected", err.Error()))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
