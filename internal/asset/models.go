package asset

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status 资产台账状态
type Status string

const (
	StatusActive   Status = "active"
	StatusDisposed Status = "disposed"
)

// Asset 固定资产台账，发起盘点时按范围快照
type Asset struct {
	ID             string    `gorm:"size:36;primaryKey" json:"id"`
	HospitalID     string    `gorm:"size:64;not null;uniqueIndex:idx_asset_hospital_key;index" json:"hospitalId"`
	AssetKey       string    `gorm:"size:64;not null;uniqueIndex:idx_asset_hospital_key" json:"assetKey"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Category       string    `gorm:"size:100;index" json:"category"`
	DepartmentID   string    `gorm:"size:64;index" json:"departmentId"`
	DepartmentName string    `gorm:"size:255" json:"departmentName"`
	Location       string    `gorm:"size:255" json:"location"`
	Status         Status    `gorm:"size:20;not null;default:active" json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	return nil
}

// TableName 指定表名
func (Asset) TableName() string {
	return "assets"
}

// Scope 盘点范围，各条件取交集，空条件表示不限
type Scope struct {
	AssetKeys     []string `json:"assetKeys,omitempty"`
	DepartmentIDs []string `json:"departmentIds,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// CreateInput 登记资产请求
type CreateInput struct {
	HospitalID     string `json:"hospitalId" binding:"required,max=64"`
	AssetKey       string `json:"assetKey" binding:"required,max=64"`
	Name           string `json:"name" binding:"required,max=255"`
	Category       string `json:"category" binding:"max=100"`
	DepartmentID   string `json:"departmentId" binding:"max=64,ne=unassigned"` // unassigned 保留给无科室分组
	DepartmentName string `json:"departmentName" binding:"max=255"`
	Location       string `json:"location" binding:"max=255"`
}

// ListFilter 台账查询条件
type ListFilter struct {
	HospitalID   string
	DepartmentID string
	Category     string
	Status       string
	Search       string
	Page         int
	Limit        int
}
