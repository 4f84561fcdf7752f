package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP 指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_http_requests_total",
			Help: "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_audit_http_request_duration_seconds",
			Help:    "HTTP 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize HTTP 响应体大小（字节）
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_audit_http_response_size_bytes",
			Help:    "HTTP 响应体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
)

// 盘点业务指标
var (
	// AuditTransitionsTotal 盘点状态迁移次数
	AuditTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_transitions_total",
			Help: "盘点状态迁移次数",
		},
		[]string{"from", "to"},
	)

	// AuditVerificationsTotal 资产核查次数
	AuditVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_verifications_total",
			Help: "资产核查次数",
		},
		[]string{"physical_status", "discrepancy"},
	)

	// AuditRejectedTotal 被拒绝的盘点操作
	AuditRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_rejected_operations_total",
			Help: "因状态或校验失败被拒绝的盘点操作",
		},
		[]string{"operation", "reason"},
	)

	// AuditSnapshotSize 发起盘点时快照的资产数量
	AuditSnapshotSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_audit_snapshot_assets",
			Help:    "发起盘点时快照的资产数量分布",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 20000},
		},
	)

	// RollupCacheTotal 汇总缓存命中情况
	RollupCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_rollup_cache_total",
			Help: "汇总缓存命中/未命中次数",
		},
		[]string{"result"}, // hit, miss, error
	)
)

// 后台任务指标
var (
	// ReportTasksTotal 报表生成任务数
	ReportTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_audit_report_tasks_total",
			Help: "报表生成任务数",
		},
		[]string{"kind", "status"},
	)

	// ReportTaskDuration 报表生成耗时（秒）
	ReportTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_audit_report_task_duration_seconds",
			Help:    "报表生成耗时分布",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// RecordTransition 记录状态迁移
func RecordTransition(from, to string) {
	AuditTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordVerification 记录一次核查
func RecordVerification(physicalStatus string, discrepancy bool) {
	label := "false"
	if discrepancy {
		label = "true"
	}
	AuditVerificationsTotal.WithLabelValues(physicalStatus, label).Inc()
}

// RecordRejected 记录被拒绝的操作
func RecordRejected(operation, reason string) {
	AuditRejectedTotal.WithLabelValues(operation, reason).Inc()
}
