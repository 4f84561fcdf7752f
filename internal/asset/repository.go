package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"

	"gorm.io/gorm"
)

// ErrDuplicateAssetKey 同一医院内资产编号重复
var ErrDuplicateAssetKey = errors.New("资产编号已存在")

// Repository 资产台账存储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建资产台账存储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 登记单个资产
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Asset, error) {
	a := &Asset{
		HospitalID:     in.HospitalID,
		AssetKey:       in.AssetKey,
		Name:           in.Name,
		Category:       in.Category,
		DepartmentID:   in.DepartmentID,
		DepartmentName: in.DepartmentName,
		Location:       in.Location,
	}
	if err := r.BulkCreate(ctx, []*Asset{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// BulkCreate 批量登记资产
func (r *Repository) BulkCreate(ctx context.Context, assets []*Asset) error {
	if len(assets) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).CreateInBatches(assets, 200).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateAssetKey
	}
	if err != nil {
		return fmt.Errorf("登记资产失败: %w", err)
	}
	return nil
}

// List 分页查询台账
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Asset, int64, error) {
	q := r.db.WithContext(ctx).Model(&Asset{}).
		Scopes(
			common.ByHospital(f.HospitalID),
			common.WithStatus("department_id", f.DepartmentID),
			common.WithStatus("category", f.Category),
			common.WithStatus("status", f.Status),
			common.KeywordSearch(f.Search, "asset_key", "name", "location"),
		)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计资产失败: %w", err)
	}

	var assets []Asset
	page := common.PaginationRequest{Page: f.Page, Limit: f.Limit}
	if err := q.Scopes(common.Paginate(page)).Order("asset_key ASC").Find(&assets).Error; err != nil {
		return nil, 0, fmt.Errorf("查询资产失败: %w", err)
	}
	return assets, total, nil
}

// ResolveScope 解析盘点范围内的在用资产，按资产编号排序
// tx 非空时在调用方事务内查询，保证快照与盘点创建原子
func (r *Repository) ResolveScope(ctx context.Context, tx *gorm.DB, hospitalID string, scope Scope) ([]Asset, error) {
	db := tx
	if db == nil {
		db = r.db
	}

	q := db.WithContext(ctx).Where("hospital_id = ? AND status = ?", hospitalID, StatusActive)
	if len(scope.AssetKeys) > 0 {
		q = q.Where("asset_key IN ?", scope.AssetKeys)
	}
	if len(scope.DepartmentIDs) > 0 {
		q = q.Where("department_id IN ?", scope.DepartmentIDs)
	}
	if len(scope.Categories) > 0 {
		q = q.Where("category IN ?", scope.Categories)
	}

	var assets []Asset
	if err := q.Order("asset_key ASC").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("解析盘点范围失败: %w", err)
	}
	return assets, nil
}
