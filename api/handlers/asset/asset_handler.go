package asset

import (
	"errors"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetHandler 资产台账处理器
type AssetHandler struct {
	repo *asset.Repository
}

// NewAssetHandler 创建资产台账处理器
func NewAssetHandler(repo *asset.Repository) *AssetHandler {
	return &AssetHandler{repo: repo}
}

// Create 登记资产
func (h *AssetHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	scope := middleware.HospitalFromContext(ctx)

	// 未填写医院时默认为当前医院范围
	in := asset.CreateInput{HospitalID: scope}
	if err := c.ShouldBindJSON(&in); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	if scope != "" && in.HospitalID != scope {
		common.ResponseForbidden(c, "不能为其他医院登记资产")
		return
	}

	a, err := h.repo.Create(ctx, in)
	if err != nil {
		if errors.Is(err, asset.ErrDuplicateAssetKey) {
			common.ResponseError(c, common.CodeConflict, "资产编号已存在")
			return
		}
		logger.WithContext(ctx).Error("登记资产失败", zap.Error(err))
		common.ResponseServerError(c, "")
		return
	}
	common.ResponseCreated(c, a)
}

// ListQuery 资产查询参数
type ListQuery struct {
	common.PaginationRequest
	HospitalID   string `form:"hospitalId"`
	DepartmentID string `form:"departmentId"`
	Category     string `form:"category"`
	Status       string `form:"status"`
	Search       string `form:"search"`
}

// List 资产列表
func (h *AssetHandler) List(c *gin.Context) {
	q := ListQuery{PaginationRequest: common.DefaultPagination()}
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	hospitalID := q.HospitalID
	if scope := middleware.HospitalFromContext(ctx); scope != "" {
		hospitalID = scope
	}

	assets, total, err := h.repo.List(ctx, asset.ListFilter{
		HospitalID:   hospitalID,
		DepartmentID: q.DepartmentID,
		Category:     q.Category,
		Status:       q.Status,
		Search:       q.Search,
		Page:         q.Page,
		Limit:        q.Limit,
	})
	if err != nil {
		logger.WithContext(ctx).Error("查询资产失败", zap.Error(err))
		common.ResponseServerError(c, "")
		return
	}
	common.ResponseSuccess(c, gin.H{
		"assets":     assets,
		"pagination": common.NewPagination(q.GetPage(), q.GetLimit(), total),
	})
}
