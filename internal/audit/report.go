package audit

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// 报表工作表
const (
	SheetOverview      = "Overview"
	SheetDepartments   = "Departments"
	SheetAssets        = "Assets"
	SheetDiscrepancies = "Discrepancies"
)

var assetHeader = []any{
	"Asset Key", "Asset Name", "Category", "Department", "Expected Location",
	"Physical Status", "Location Matched", "Discrepancy", "Discrepancy Reason",
	"Auditor Remark", "Verified By", "Verified At",
}

// BuildWorkbook 生成盘点报表，汇总数据与接口使用同一套计算
func BuildWorkbook(a *Audit, records []AuditAssetRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetDepartments, SheetAssets, SheetDiscrepancies} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
	}

	rollup := ComputeRollup(records)
	stats := rollup.Overall

	overview := [][]any{
		{"Audit Code", a.AuditCode},
		{"Hospital", a.HospitalID},
		{"Audit Type", string(a.AuditType)},
		{"Status", string(a.Status)},
		{"Close Kind", string(a.CloseKind)},
		{"Initiated By", a.InitiatedBy},
		{"Created At", formatTime(&a.CreatedAt)},
		{"Submitted At", formatTime(a.SubmittedAt)},
		{"Closed At", formatTime(a.ClosedAt)},
		{},
		{"Total Assets", stats.TotalAssets},
		{"Verified Assets", stats.VerifiedAssets},
		{"Pending Assets", stats.PendingAssets},
		{"Discrepancy Assets", stats.DiscrepancyAssets},
		{"Discrepancies Without Reason", stats.ReasonMissing},
		{"Verification Rate (%)", stats.VerificationRate},
	}
	if err := writeRows(f, SheetOverview, overview); err != nil {
		return nil, err
	}

	depts := [][]any{{"Department ID", "Department", "Total", "Verified", "Pending", "Discrepancies", "Verification Rate (%)"}}
	for _, g := range rollup.Departments {
		depts = append(depts, []any{
			g.DepartmentID, g.DepartmentName, g.Total, g.Verified, g.Pending, g.Discrepancies,
			VerificationRate(g.Verified, g.Total),
		})
	}
	if err := writeRows(f, SheetDepartments, depts); err != nil {
		return nil, err
	}

	all := [][]any{assetHeader}
	diffs := [][]any{assetHeader}
	for i := range records {
		row := assetRow(&records[i])
		all = append(all, row)
		if records[i].Discrepancy {
			diffs = append(diffs, row)
		}
	}
	if err := writeRows(f, SheetAssets, all); err != nil {
		return nil, err
	}
	if err := writeRows(f, SheetDiscrepancies, diffs); err != nil {
		return nil, err
	}

	return f, nil
}

func assetRow(r *AuditAssetRecord) []any {
	matched := ""
	if r.LocationMatched != nil {
		matched = fmt.Sprint(*r.LocationMatched)
	}
	dept := r.DepartmentName
	if r.DepartmentID == "" {
		dept = UnassignedDepartment
	}
	return []any{
		r.AssetKey, r.AssetName, r.Category, dept, r.ExpectedLocation,
		string(r.PhysicalStatus), matched, r.Discrepancy, r.DiscrepancyReason,
		r.AuditorRemark, r.VerifiedBy, formatTime(r.LastVerifiedAt),
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("写入工作表 %s 失败: %w", sheet, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
