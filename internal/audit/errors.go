package audit

import (
	"errors"
	"fmt"
)

// ErrReportQueueDisabled 未配置报表任务队列（未启用 Redis）
var ErrReportQueueDisabled = errors.New("报表任务队列未启用")

// ValidationError 输入不合法，可由调用方修正
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError 盘点单或资产不存在
type NotFoundError struct {
	Resource string // audit, asset, report
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q 不存在", e.Resource, e.Key)
}

// InvalidStateError 当前状态不允许该操作，携带当前状态供前端刷新
type InvalidStateError struct {
	Operation string
	Status    Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("盘点状态为 %s，不允许执行 %s", e.Status, e.Operation)
}

// IncompleteVerificationError 提交时仍有未核查资产
type IncompleteVerificationError struct {
	Pending int64
}

func (e *IncompleteVerificationError) Error() string {
	if e.Pending == 1 {
		return "1 asset pending"
	}
	return fmt.Sprintf("%d assets pending", e.Pending)
}

// ConflictError 盘点编号在同一医院内重复
type ConflictError struct {
	HospitalID string
	AuditCode  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("医院 %s 已存在盘点编号 %s", e.HospitalID, e.AuditCode)
}

