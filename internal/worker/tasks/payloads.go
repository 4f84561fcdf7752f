package tasks

// 任务类型
const (
	TypeGenerateReport = "audit:generate_report"
)

// GenerateReportPayload 盘点报表生成任务载荷
type GenerateReportPayload struct {
	ReportID string `json:"report_id"`
}
