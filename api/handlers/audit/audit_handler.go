package audit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	auditpkg "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/middleware"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
)

// AuditHandler 盘点处理器
type AuditHandler struct {
	svc *auditpkg.Service
}

// NewAuditHandler 创建盘点处理器
func NewAuditHandler(svc *auditpkg.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// authorize 校验盘点单在当前医院范围内，失败时已写入响应
func (h *AuditHandler) authorize(c *gin.Context) (string, bool) {
	auditID := c.Param("auditId")
	if err := h.svc.EnsureHospital(c.Request.Context(), auditID, middleware.HospitalFromContext(c.Request.Context())); err != nil {
		respondError(c, err)
		return "", false
	}
	return auditID, true
}

func currentUserID(c *gin.Context) string {
	if sess, ok := session.FromContext(c.Request.Context()); ok {
		return sess.UserID
	}
	return ""
}

// Initiate 发起盘点
func (h *AuditHandler) Initiate(c *gin.Context) {
	var in auditpkg.InitiateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if scope := middleware.HospitalFromContext(ctx); scope != "" {
		if in.HospitalID == "" {
			in.HospitalID = scope
		} else if in.HospitalID != scope {
			common.ResponseForbidden(c, "不能为其他医院发起盘点")
			return
		}
	}
	in.InitiatedBy = currentUserID(c)

	a, err := h.svc.Initiate(ctx, in)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseCreated(c, gin.H{"auditId": a.ID, "status": a.Status})
}

// Verify 核查单项资产
func (h *AuditHandler) Verify(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	var in auditpkg.VerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}

	res, err := h.svc.Verify(c.Request.Context(), auditID, c.Param("assetKey"), in, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, res)
}

// Submit 提交盘点
func (h *AuditHandler) Submit(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	a, err := h.svc.Submit(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"status": a.Status})
}

// Close 关闭盘点
func (h *AuditHandler) Close(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	a, err := h.svc.Close(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"status": a.Status, "closeKind": a.CloseKind})
}

// AssignAuditorsRequest 指派盘点人员
type AssignAuditorsRequest struct {
	AssignedAuditors []string `json:"assignedAuditors"`
}

// AssignAuditors 替换盘点人员
func (h *AuditHandler) AssignAuditors(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	var req AssignAuditorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	a, err := h.svc.AssignAuditors(c.Request.Context(), auditID, req.AssignedAuditors)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// GetAudit 盘点详情
func (h *AuditHandler) GetAudit(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetAudit(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, detail)
}

// ListAuditsQuery 盘点单查询参数
type ListAuditsQuery struct {
	common.PaginationRequest
	Status     string `form:"status"`
	AuditType  string `form:"auditType"`
	HospitalID string `form:"hospitalId"`
	Search     string `form:"search"`
}

// ListAudits 盘点单列表
func (h *AuditHandler) ListAudits(c *gin.Context) {
	q := ListAuditsQuery{PaginationRequest: common.DefaultPagination()}
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	hospitalID := q.HospitalID
	if scope := middleware.HospitalFromContext(c.Request.Context()); scope != "" {
		hospitalID = scope
	}

	audits, pagination, err := h.svc.ListAudits(c.Request.Context(), auditpkg.ListFilter{
		Status:     auditpkg.Status(q.Status),
		AuditType:  auditpkg.Type(q.AuditType),
		HospitalID: hospitalID,
		Search:     q.Search,
		Page:       q.Page,
		Limit:      q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"audits": audits, "pagination": pagination})
}

// ListAssetsQuery 盘点资产查询参数
type ListAssetsQuery struct {
	common.PaginationRequest
	Status       string `form:"status"`
	Search       string `form:"search"`
	DepartmentID string `form:"departmentId"`
}

// ListAuditAssets 盘点资产列表与汇总
func (h *AuditHandler) ListAuditAssets(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	q := ListAssetsQuery{PaginationRequest: common.DefaultPagination()}
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}

	page, err := h.svc.ListAuditAssets(c.Request.Context(), auditID, auditpkg.AssetFilter{
		Status:       auditpkg.PhysicalStatus(q.Status),
		Search:       q.Search,
		DepartmentID: q.DepartmentID,
		Page:         q.Page,
		Limit:        q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, page)
}

// Summary 核查结果汇总
func (h *AuditHandler) Summary(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	includeZero := c.Query("includeZero") == "true" || c.Query("includeZero") == "1"
	summary, err := h.svc.GetAuditSummary(c.Request.Context(), auditID, includeZero)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"summary": summary})
}

// History 核查流水
func (h *AuditHandler) History(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	entries, err := h.svc.ListHistory(c.Request.Context(), auditID, c.Query("assetKey"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"history": entries})
}

// Export 同步导出报表
func (h *AuditHandler) Export(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	f, a, err := h.svc.ExportWorkbook(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("audit_%s.xlsx", strings.NewReplacer("/", "-", "\\", "-", "\"", "").Replace(a.AuditCode))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", name, url.PathEscape(name)))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// ListReports 报表列表
func (h *AuditHandler) ListReports(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	reports, err := h.svc.ListReports(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"reports": reports})
}

// RequestReport 手动排队生成报表
func (h *AuditHandler) RequestReport(c *gin.Context) {
	auditID, ok := h.authorize(c)
	if !ok {
		return
	}
	report, err := h.svc.RequestReport(c.Request.Context(), auditID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, common.SuccessResponse(report))
}
