package auth

import (
	"errors"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/auth"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var in auth.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}

	res, err := h.svc.Login(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			common.ResponseError(c, common.CodeInvalidCredentials, "")
			return
		}
		logger.WithContext(c.Request.Context()).Error("登录失败", zap.Error(err))
		common.ResponseServerError(c, "")
		return
	}
	common.ResponseSuccess(c, res)
}

// Logout 登出，关闭当前会话
func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := auth.CurrentSession(c)
	if !ok {
		common.ResponseUnauthorized(c, "")
		return
	}
	if err := h.svc.Logout(c.Request.Context(), sess); err != nil {
		logger.WithContext(c.Request.Context()).Error("登出失败", zap.Error(err))
		common.ResponseServerError(c, "")
		return
	}
	common.ResponseSuccess(c, gin.H{"message": "登出成功"})
}

// Me 当前会话信息
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := auth.CurrentSession(c)
	if !ok {
		common.ResponseUnauthorized(c, "")
		return
	}
	common.ResponseSuccess(c, sess)
}
