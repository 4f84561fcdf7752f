package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status 盘点状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// Type 盘点类型
type Type string

const (
	TypeStatutory Type = "statutory"
	TypeInternal  Type = "internal"
	TypePhysical  Type = "physical"
	TypeSurprise  Type = "surprise"
)

// PhysicalStatus 资产实物核查结果
type PhysicalStatus string

const (
	PhysicalPending  PhysicalStatus = "pending"
	PhysicalFound    PhysicalStatus = "found"
	PhysicalNotFound PhysicalStatus = "not_found"
	PhysicalDamaged  PhysicalStatus = "damaged"
	PhysicalExcess   PhysicalStatus = "excess"
)

// physicalStatusOrder 汇总输出的固定顺序
var physicalStatusOrder = []PhysicalStatus{PhysicalFound, PhysicalNotFound, PhysicalDamaged, PhysicalExcess}

// CloseKind 关闭方式
type CloseKind string

const (
	CloseNormal  CloseKind = "normal"  // completed -> closed
	CloseAborted CloseKind = "aborted" // in_progress -> closed
)

// Audit 盘点单（聚合根）
type Audit struct {
	ID               string                      `gorm:"size:36;primaryKey" json:"auditId"`
	AuditCode        string                      `gorm:"size:64;not null;uniqueIndex:idx_audit_hospital_code" json:"auditCode"`
	HospitalID       string                      `gorm:"size:64;not null;uniqueIndex:idx_audit_hospital_code;index" json:"hospitalId"`
	AuditType        Type                        `gorm:"size:20;not null;index" json:"auditType"`
	Status           Status                      `gorm:"size:20;not null;index" json:"status"`
	CloseKind        CloseKind                   `gorm:"size:20" json:"closeKind,omitempty"`
	Title            string                      `gorm:"size:255" json:"title,omitempty"`
	Remarks          string                      `gorm:"type:text" json:"remarks,omitempty"`
	InitiatedBy      string                      `gorm:"size:64" json:"initiatedBy"`
	AssignedAuditors datatypes.JSONSlice[string] `json:"assignedAuditors"`
	Revision         int64                       `gorm:"not null;default:0" json:"revision"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
	SubmittedAt      *time.Time                  `json:"submittedAt,omitempty"`
	ClosedAt         *time.Time                  `json:"closedAt,omitempty"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (a *Audit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAuditors == nil {
		a.AssignedAuditors = datatypes.JSONSlice[string]{}
	}
	return nil
}

// TableName 指定表名
func (Audit) TableName() string {
	return "audits"
}

// AuditAssetRecord 单个资产在某次盘点中的当前核查状态
// 科室信息在快照时冗余保存，之后资产调拨不影响盘点结果
type AuditAssetRecord struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditID           string         `gorm:"size:36;not null;uniqueIndex:idx_record_audit_asset" json:"auditId"`
	AssetKey          string         `gorm:"size:64;not null;uniqueIndex:idx_record_audit_asset" json:"assetKey"`
	AssetName         string         `gorm:"size:255" json:"assetName"`
	Category          string         `gorm:"size:100" json:"category,omitempty"`
	ExpectedLocation  string         `gorm:"size:255" json:"expectedLocation,omitempty"`
	DepartmentID      string         `gorm:"size:64;index" json:"departmentId"`
	DepartmentName    string         `gorm:"size:255" json:"departmentName"`
	PhysicalStatus    PhysicalStatus `gorm:"size:20;not null;index" json:"physicalStatus"`
	LocationMatched   *bool          `json:"locationMatched"`
	Discrepancy       bool           `gorm:"not null;default:false" json:"discrepancy"`
	DiscrepancyReason string         `gorm:"type:text" json:"discrepancyReason,omitempty"`
	AuditorRemark     string         `gorm:"type:text" json:"auditorRemark,omitempty"`
	VerifiedAt        *time.Time     `json:"verifiedAt,omitempty"`
	LastVerifiedAt    *time.Time     `json:"lastVerifiedAt,omitempty"`
	VerifiedBy        string         `gorm:"size:64" json:"verifiedBy,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// TableName 指定表名
func (AuditAssetRecord) TableName() string {
	return "audit_asset_records"
}

// ReasonMissing 存在差异但未填写原因
func (r *AuditAssetRecord) ReasonMissing() bool {
	return r.Discrepancy && r.DiscrepancyReason == ""
}

// VerificationHistoryEntry 核查流水，只追加不修改
type VerificationHistoryEntry struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditID           string         `gorm:"size:36;not null;index:idx_history_audit_asset" json:"auditId"`
	AssetKey          string         `gorm:"size:64;not null;index:idx_history_audit_asset" json:"assetKey"`
	PhysicalStatus    PhysicalStatus `gorm:"size:20;not null" json:"physicalStatus"`
	LocationMatched   *bool          `json:"locationMatched"`
	Discrepancy       bool           `gorm:"not null" json:"discrepancy"`
	DiscrepancyReason string         `gorm:"type:text" json:"discrepancyReason,omitempty"`
	AuditorRemark     string         `gorm:"type:text" json:"auditorRemark,omitempty"`
	VerifiedAt        time.Time      `gorm:"not null;index" json:"verifiedAt"`
	VerifiedBy        string         `gorm:"size:64" json:"verifiedBy"`
}

// TableName 指定表名
func (VerificationHistoryEntry) TableName() string {
	return "verification_history"
}

// ReportKind 报表触发方式
type ReportKind string

const (
	ReportSubmitted ReportKind = "submitted"
	ReportClosed    ReportKind = "closed"
	ReportManual    ReportKind = "manual"
)

// ReportStatus 报表生成状态
type ReportStatus string

const (
	ReportQueued ReportStatus = "queued"
	ReportReady  ReportStatus = "ready"
	ReportFailed ReportStatus = "failed"
)

// AuditReport 盘点报表元数据，盘点关闭后仍可更新
type AuditReport struct {
	ID        string       `gorm:"size:36;primaryKey" json:"id"`
	AuditID   string       `gorm:"size:36;not null;index" json:"auditId"`
	Kind      ReportKind   `gorm:"size:20;not null" json:"kind"`
	Status    ReportStatus `gorm:"size:20;not null" json:"status"`
	FilePath  string       `gorm:"size:512" json:"filePath,omitempty"`
	Error     string       `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (r *AuditReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// TableName 指定表名
func (AuditReport) TableName() string {
	return "audit_reports"
}

// Models 需要迁移的表
func Models() []any {
	return []any{&Audit{}, &AuditAssetRecord{}, &VerificationHistoryEntry{}, &AuditReport{}}
}
