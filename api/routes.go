package api

import (
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/auth"
	middlewarepkg "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/middleware"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册业务路由
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	authn := auth.AuthMiddleware(c.AuthService)

	// 认证
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", middlewarepkg.RateLimitByClientIP(c.LoginLimiter), h.Auth.Login)
		authGroup.POST("/logout", authn, h.Auth.Logout)
		authGroup.GET("/me", authn, h.Auth.Me)
	}

	scoped := router.Group("", authn, middlewarepkg.HospitalScope())
	registerAuditRoutes(scoped, h)
	registerAssetRoutes(scoped, h)
}

// registerAuditRoutes 盘点路由
func registerAuditRoutes(rg *gin.RouterGroup, h *Handlers) {
	manager := auth.RequireRole(session.RoleAuditManager)
	auditor := auth.RequireRole(session.RoleAuditor, session.RoleAuditManager)
	reader := auth.RequireRole(session.RoleViewer, session.RoleAuditor, session.RoleAuditManager)

	audits := rg.Group("/audit")
	{
		audits.POST("/initiate", manager, h.Audit.Initiate)
		audits.PUT("/verify/:auditId/:assetKey", auditor, h.Audit.Verify)
		audits.PUT("/submit/:auditId", manager, h.Audit.Submit)
		audits.PUT("/close/:auditId", manager, h.Audit.Close)
		audits.GET("/summary/:auditId", reader, h.Audit.Summary)

		audits.GET("", reader, h.Audit.ListAudits)
		audits.GET("/:auditId", reader, h.Audit.GetAudit)
		audits.GET("/:auditId/assets", reader, h.Audit.ListAuditAssets)
		audits.GET("/:auditId/history", reader, h.Audit.History)
		audits.PUT("/:auditId/auditors", manager, h.Audit.AssignAuditors)
		audits.GET("/:auditId/export", reader, h.Audit.Export)
		audits.GET("/:auditId/reports", reader, h.Audit.ListReports)
		audits.POST("/:auditId/reports", manager, h.Audit.RequestReport)
	}
}

// registerAssetRoutes 资产台账路由
func registerAssetRoutes(rg *gin.RouterGroup, h *Handlers) {
	assets := rg.Group("/assets")
	{
		assets.POST("", auth.RequireRole(session.RoleAuditManager), h.Asset.Create)
		assets.GET("", auth.RequireRole(session.RoleViewer, session.RoleAuditor, session.RoleAuditManager), h.Asset.List)
	}
}
