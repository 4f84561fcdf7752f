package audit

import (
	"sort"

	"github.com/shopspring/decimal"
)

// UnassignedDepartment 无科室资产的分组标识
// 分组按 departmentKey 区分，真实科室 ID 恰为该值时不会与无科室分组合并
const UnassignedDepartment = "unassigned"

type departmentKey struct {
	id       string
	assigned bool
}

// OverallStats 整体核查进度
type OverallStats struct {
	TotalAssets       int64   `json:"totalAssets"`
	VerifiedAssets    int64   `json:"verifiedAssets"`
	DiscrepancyAssets int64   `json:"discrepancyAssets"`
	PendingAssets     int64   `json:"pendingAssets"`
	VerificationRate  float64 `json:"verificationRate"`
	ReasonMissing     int64   `json:"reasonMissing"`
}

// DepartmentGroup 按科室分组的核查进度
type DepartmentGroup struct {
	DepartmentID   string             `json:"departmentId"`
	DepartmentName string             `json:"departmentName"`
	Total          int64              `json:"total"`
	Verified       int64              `json:"verified"`
	Discrepancies  int64              `json:"discrepancies"`
	Pending        int64              `json:"pending"`
	ReasonMissing  int64              `json:"reasonMissing"`
	Unassigned     bool               `json:"unassigned"` // 快照时资产未登记科室
	Assets         []AuditAssetRecord `json:"assets"`
}

// StatusCount 核查结果计数
type StatusCount struct {
	Status PhysicalStatus `json:"_id"`
	Count  int64          `json:"count"`
}

// Rollup 同一份记录快照上计算出的全部汇总
type Rollup struct {
	Overall     OverallStats      `json:"overallStats"`
	Departments []DepartmentGroup `json:"assetsByDepartment"`
}

// VerificationRate 核查率（百分比，保留两位小数），总数为 0 时返回 0
func VerificationRate(verified, total int64) float64 {
	if total <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(verified).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 2)
	f, _ := rate.Float64()
	return f
}

// ComputeOverallStats 由记录计算整体进度
func ComputeOverallStats(records []AuditAssetRecord) OverallStats {
	var s OverallStats
	for i := range records {
		r := &records[i]
		s.TotalAssets++
		if r.PhysicalStatus != PhysicalPending {
			s.VerifiedAssets++
		}
		if r.Discrepancy {
			s.DiscrepancyAssets++
		}
		if r.ReasonMissing() {
			s.ReasonMissing++
		}
	}
	s.PendingAssets = s.TotalAssets - s.VerifiedAssets
	s.VerificationRate = VerificationRate(s.VerifiedAssets, s.TotalAssets)
	return s
}

// GroupByDepartment 按快照时的科室分组
// 排序：资产数降序，相同时按科室名称升序，再按科室 ID 升序，真实科室排在无科室分组之前
func GroupByDepartment(records []AuditAssetRecord) []DepartmentGroup {
	index := make(map[departmentKey]int)
	groups := make([]DepartmentGroup, 0)

	for i := range records {
		r := records[i]
		key := departmentKey{id: r.DepartmentID, assigned: r.DepartmentID != ""}
		id, name := r.DepartmentID, r.DepartmentName
		if !key.assigned {
			id, name = UnassignedDepartment, UnassignedDepartment
		}
		if name == "" {
			name = id
		}

		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, DepartmentGroup{DepartmentID: id, DepartmentName: name, Unassigned: !key.assigned})
		}

		g := &groups[pos]
		g.Total++
		if r.PhysicalStatus == PhysicalPending {
			g.Pending++
		} else {
			g.Verified++
		}
		if r.Discrepancy {
			g.Discrepancies++
		}
		if r.ReasonMissing() {
			g.ReasonMissing++
		}
		g.Assets = append(g.Assets, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.DepartmentName != b.DepartmentName {
			return a.DepartmentName < b.DepartmentName
		}
		if a.DepartmentID != b.DepartmentID {
			return a.DepartmentID < b.DepartmentID
		}
		return !a.Unassigned && b.Unassigned
	})
	return groups
}

// ComputeRollup 同时计算整体与科室汇总
func ComputeRollup(records []AuditAssetRecord) Rollup {
	return Rollup{
		Overall:     ComputeOverallStats(records),
		Departments: GroupByDepartment(records),
	}
}

// SummarizeByStatus 统计已核查记录的结果分布
func SummarizeByStatus(records []AuditAssetRecord, includeZero bool) []StatusCount {
	counts := make(map[PhysicalStatus]int64)
	for i := range records {
		counts[records[i].PhysicalStatus]++
	}
	return SummarizeCounts(counts, includeZero)
}

// SummarizeCounts 将计数整理为固定顺序的列表，pending 不计入
// includeZero 为 false 时只返回出现过的结果
func SummarizeCounts(counts map[PhysicalStatus]int64, includeZero bool) []StatusCount {
	out := make([]StatusCount, 0, len(physicalStatusOrder))
	for _, st := range physicalStatusOrder {
		n := counts[st]
		if n == 0 && !includeZero {
			continue
		}
		out = append(out, StatusCount{Status: st, Count: n})
	}
	return out
}
