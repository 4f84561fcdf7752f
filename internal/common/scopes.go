package common

import (
	"strings"

	"gorm.io/gorm"
)

// ByHospital 按医院ID过滤（多院区查询通用Scope）
// 使用方法：db.Scopes(common.ByHospital(hospitalID)).Find(&audits)
func ByHospital(hospitalID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if hospitalID == "" {
			return db
		}
		return db.Where("hospital_id = ?", hospitalID)
	}
}

// WithStatus 按状态过滤，空值不过滤
func WithStatus(column, status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where(column+" = ?", status)
	}
}

// KeywordSearch 关键词模糊搜索
// 示例: db.Scopes(common.KeywordSearch("CT", "asset_key", "asset_name"))
func KeywordSearch(keyword string, fields ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" || len(fields) == 0 {
			return db
		}

		conditions := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		pattern := "%" + strings.ToLower(keyword) + "%"
		for _, field := range fields {
			conditions = append(conditions, "LOWER("+field+") LIKE ?")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(conditions, " OR ")+")", args...)
	}
}

// Paginate 应用分页条件
func Paginate(req PaginationRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.GetOffset()).Limit(req.GetLimit())
	}
}
