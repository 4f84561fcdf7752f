package common

// ============================================================================
// 通用请求类型
// ============================================================================

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page  int `json:"page" form:"page" binding:"omitempty,min=1"`   // 页码，从1开始
	Limit int `json:"limit" form:"limit" binding:"omitempty,min=1"` // 每页数量
}

// DefaultPagination 返回默认分页参数
func DefaultPagination() PaginationRequest {
	return PaginationRequest{
		Page:  1,
		Limit: 20,
	}
}

// GetPage 获取页码，提供默认值
func (p PaginationRequest) GetPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

// GetOffset 计算数据库查询的偏移量
func (p PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

// GetLimit 获取每页数量，提供默认值
func (p PaginationRequest) GetLimit() int {
	if p.Limit < 1 {
		return 20
	}
	if p.Limit > 100 {
		return 100
	}
	return p.Limit
}

// ============================================================================
// 通用响应类型
// ============================================================================

// APIResponse 统一API响应格式
type APIResponse struct {
	Success bool   `json:"success"`           // 是否成功
	Data    any    `json:"data,omitempty"`    // 响应数据
	Message string `json:"message,omitempty"` // 提示信息
	Code    int    `json:"code"`              // 业务状态码
}

// SuccessResponse 成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Code:    CodeSuccess,
	}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, message string, data any) APIResponse {
	return APIResponse{
		Success: false,
		Data:    data,
		Message: message,
		Code:    code,
	}
}

// Pagination 分页元信息
type Pagination struct {
	Page       int   `json:"page"`       // 当前页码
	Limit      int   `json:"limit"`      // 每页数量
	Total      int64 `json:"total"`      // 总记录数
	TotalPages int   `json:"totalPages"` // 总页数
}

// NewPagination 创建分页元信息
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
	}
	if limit > 0 {
		p.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return p
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	// 成功状态码
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest  = 1000 // 请求参数错误
	CodeUnauthorized    = 1001 // 未授权
	CodeForbidden       = 1002 // 禁止访问
	CodeNotFound        = 1003 // 资源不存在
	CodeConflict        = 1004 // 资源冲突
	CodeInternalError   = 1005 // 内部错误
	CodeTooManyRequests = 1006 // 请求过于频繁
	CodeUnavailable     = 1007 // 依赖服务未启用

	// 认证相关错误码 (2000-2099)
	CodeInvalidCredentials = 2012 // 凭证无效
	CodeSessionClosed      = 2013 // 会话已结束

	// 盘点相关错误码 (7000-7099)
	CodeInvalidAuditState      = 7001 // 盘点状态不允许该操作
	CodeIncompleteVerification = 7002 // 仍有资产未核查
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:         "操作成功",
	CodeInvalidRequest:  "请求参数错误",
	CodeUnauthorized:    "未授权，请先登录",
	CodeForbidden:       "无权限访问",
	CodeNotFound:        "资源不存在",
	CodeConflict:        "资源冲突",
	CodeInternalError:   "系统内部错误",
	CodeTooManyRequests: "请求过于频繁，请稍后重试",
	CodeUnavailable:     "服务暂不可用",

	CodeInvalidCredentials: "用户名或密码错误",
	CodeSessionClosed:      "会话已结束，请重新登录",

	CodeInvalidAuditState:      "当前盘点状态不允许该操作",
	CodeIncompleteVerification: "仍有资产未完成核查",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 通用业务错误类型
// ============================================================================

// BusinessError 业务错误
type BusinessError struct {
	Code    int    // 错误码
	Message string // 错误信息
	Data    any    // 附加数据（如当前状态、未核查数量）
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}
