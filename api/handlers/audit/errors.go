package audit

import (
	"errors"

	auditpkg "github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 将领域错误映射为统一响应
func respondError(c *gin.Context, err error) {
	var (
		validationErr *auditpkg.ValidationError
		notFoundErr   *auditpkg.NotFoundError
		stateErr      *auditpkg.InvalidStateError
		incompleteErr *auditpkg.IncompleteVerificationError
		conflictErr   *auditpkg.ConflictError
	)

	var bizErr *common.BusinessError
	switch {
	case errors.As(err, &validationErr):
		bizErr = common.NewBusinessError(common.CodeInvalidRequest, validationErr.Error())
		bizErr.Data = gin.H{"field": validationErr.Field}
	case errors.As(err, &notFoundErr):
		bizErr = common.NewBusinessError(common.CodeNotFound, notFoundErr.Error())
	case errors.As(err, &stateErr):
		bizErr = common.NewBusinessError(common.CodeInvalidAuditState, stateErr.Error())
		bizErr.Data = gin.H{"status": stateErr.Status}
	case errors.As(err, &incompleteErr):
		bizErr = common.NewBusinessError(common.CodeIncompleteVerification, incompleteErr.Error())
		bizErr.Data = gin.H{"pendingAssets": incompleteErr.Pending}
	case errors.As(err, &conflictErr):
		bizErr = common.NewBusinessError(common.CodeConflict, conflictErr.Error())
	case errors.Is(err, infra.ErrLockNotObtained):
		bizErr = common.NewBusinessError(common.CodeConflict, "该资产正在被其他人核查，请稍后重试")
	case errors.Is(err, auditpkg.ErrReportQueueDisabled):
		bizErr = common.NewBusinessError(common.CodeUnavailable, "报表任务队列未启用，请使用同步导出")
	default:
		logger.WithContext(c.Request.Context()).Error("盘点请求处理失败",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		bizErr = common.NewBusinessError(common.CodeInternalError, "")
	}
	common.ResponseBusinessError(c, bizErr)
}
