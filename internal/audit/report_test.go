package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWorkbook(t *testing.T) {
	closedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := &Audit{
		AuditCode:  "AUD-X",
		HospitalID: "h1",
		AuditType:  TypeInternal,
		Status:     StatusClosed,
		CloseKind:  CloseAborted,
		ClosedAt:   &closedAt,
	}
	records := []AuditAssetRecord{
		record("A", "d1", "Ward", PhysicalFound, boolPtr(true), ""),
		record("B", "d1", "Ward", PhysicalNotFound, boolPtr(false), "missing since March"),
		record("C", "", "", PhysicalPending, nil, ""),
	}

	f, err := BuildWorkbook(a, records)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetOverview, SheetDepartments, SheetAssets, SheetDiscrepancies}, f.GetSheetList())

	rate, err := f.GetCellValue(SheetOverview, "B16")
	require.NoError(t, err)
	assert.Equal(t, "66.67", rate)
	kind, err := f.GetCellValue(SheetOverview, "B5")
	require.NoError(t, err)
	assert.Equal(t, "aborted", kind)

	depts, err := f.GetRows(SheetDepartments)
	require.NoError(t, err)
	require.Len(t, depts, 3)
	assert.Equal(t, "d1", depts[1][0])
	assert.Equal(t, UnassignedDepartment, depts[2][0])

	assets, err := f.GetRows(SheetAssets)
	require.NoError(t, err)
	assert.Len(t, assets, 4)

	diffs, err := f.GetRows(SheetDiscrepancies)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, "B", diffs[1][0])
	assert.Equal(t, "missing since March", diffs[1][8])
}
