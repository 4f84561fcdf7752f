package audit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAuditLifecycleScenario(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d1", "C": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	a := initiate(t, svc, "AUD-2026-001")
	assert.Equal(t, StatusInProgress, a.Status)

	detail, err := svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, OverallStats{TotalAssets: 3, PendingAssets: 3}, detail.OverallStats)

	res := verify(t, svc, a.ID, "A", PhysicalFound, true)
	assert.False(t, res.Record.Discrepancy)
	assert.Equal(t, int64(3), res.OverallStats.TotalAssets)
	assert.Equal(t, int64(1), res.OverallStats.VerifiedAssets)
	assert.Equal(t, int64(2), res.OverallStats.PendingAssets)
	assert.Equal(t, 33.33, res.OverallStats.VerificationRate)

	res = verify(t, svc, a.ID, "B", PhysicalNotFound, false)
	assert.True(t, res.Record.Discrepancy)
	assert.Equal(t, int64(1), res.OverallStats.DiscrepancyAssets)
	assert.Equal(t, int64(1), res.OverallStats.ReasonMissing)
	assert.Equal(t, 66.67, res.OverallStats.VerificationRate)

	_, err = svc.Submit(ctx, a.ID)
	var incomplete *IncompleteVerificationError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, int64(1), incomplete.Pending)
	assert.Equal(t, "1 asset pending", err.Error())

	// 提交失败不改变状态
	detail, err = svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, detail.Status)

	res = verify(t, svc, a.ID, "C", PhysicalFound, true)
	assert.Equal(t, 100.0, res.OverallStats.VerificationRate)

	submitted, err := svc.Submit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	closed, err := svc.Close(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, CloseNormal, closed.CloseKind)
}

func TestCloseFromInProgressSkipsCompleted(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d2"})
	svc := newTestService(t, db)

	a := initiate(t, svc, "AUD-ABORT")
	closed, err := svc.Close(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, CloseAborted, closed.CloseKind)
	assert.Nil(t, closed.SubmittedAt)
	assert.NotNil(t, closed.ClosedAt)
}

func TestClosedAuditRejectsMutations(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	a := initiate(t, svc, "AUD-CLOSED")
	_, err := svc.Close(ctx, a.ID)
	require.NoError(t, err)

	assertState := func(t *testing.T, err error) {
		var stateErr *InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, StatusClosed, stateErr.Status)
	}

	_, err = svc.Verify(ctx, a.ID, "A", VerifyInput{PhysicalStatus: PhysicalFound, LocationMatched: boolPtr(true)}, "u")
	assertState(t, err)
	_, err = svc.Submit(ctx, a.ID)
	assertState(t, err)
	_, err = svc.Close(ctx, a.ID)
	assertState(t, err)
	_, err = svc.AssignAuditors(ctx, a.ID, []string{"u2"})
	assertState(t, err)

	// 被拒绝的操作不应留下任何记录变化
	history, err := svc.ListHistory(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCompletedAuditRejectsVerifyAndSubmit(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	a := initiate(t, svc, "AUD-DONE")
	verify(t, svc, a.ID, "A", PhysicalFound, true)
	_, err := svc.Submit(ctx, a.ID)
	require.NoError(t, err)

	var stateErr *InvalidStateError
	_, err = svc.Verify(ctx, a.ID, "A", VerifyInput{PhysicalStatus: PhysicalDamaged, LocationMatched: boolPtr(true)}, "u")
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusCompleted, stateErr.Status)

	_, err = svc.Submit(ctx, a.ID)
	require.ErrorAs(t, err, &stateErr)
}

func TestReverifyOverwritesRecordAndAppendsHistory(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	a := initiate(t, svc, "AUD-REVERIFY")
	first := verify(t, svc, a.ID, "A", PhysicalDamaged, true)
	second, err := svc.Verify(ctx, a.ID, "A", VerifyInput{
		PhysicalStatus:  PhysicalFound,
		LocationMatched: boolPtr(true),
		AuditorRemark:   "repaired",
	}, "auditor-2")
	require.NoError(t, err)

	assert.Equal(t, PhysicalFound, second.Record.PhysicalStatus)
	assert.False(t, second.Record.Discrepancy)
	assert.Equal(t, "auditor-2", second.Record.VerifiedBy)
	assert.Equal(t, "repaired", second.Record.AuditorRemark)
	// 首次核查时间保留，最近核查时间更新
	assert.Equal(t, first.Record.VerifiedAt.Unix(), second.Record.VerifiedAt.Unix())
	assert.True(t, second.Record.LastVerifiedAt.After(*first.Record.LastVerifiedAt))
	assert.Equal(t, int64(0), second.OverallStats.DiscrepancyAssets)

	history, err := svc.ListHistory(ctx, a.ID, "A")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, PhysicalFound, history[0].PhysicalStatus)
	assert.Equal(t, PhysicalDamaged, history[1].PhysicalStatus)
	assert.True(t, history[1].Discrepancy)
}

func TestVerifyErrors(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()
	a := initiate(t, svc, "AUD-ERR")

	tests := []struct {
		name    string
		auditID string
		key     string
		in      VerifyInput
		check   func(t *testing.T, err error)
	}{
		{
			name: "未知盘点", auditID: "missing", key: "A",
			in: VerifyInput{PhysicalStatus: PhysicalFound, LocationMatched: boolPtr(true)},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "audit", nf.Resource)
			},
		},
		{
			name: "资产不在盘点范围", auditID: a.ID, key: "Z",
			in: VerifyInput{PhysicalStatus: PhysicalFound, LocationMatched: boolPtr(true)},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "asset", nf.Resource)
			},
		},
		{
			name: "pending 不能作为核查结果", auditID: a.ID, key: "A",
			in: VerifyInput{PhysicalStatus: PhysicalPending, LocationMatched: boolPtr(true)},
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "physicalStatus", ve.Field)
			},
		},
		{
			name: "未知取值", auditID: a.ID, key: "A",
			in: VerifyInput{PhysicalStatus: "lost", LocationMatched: boolPtr(true)},
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name: "缺少位置核对", auditID: a.ID, key: "A",
			in: VerifyInput{PhysicalStatus: PhysicalFound},
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "locationMatched", ve.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(ctx, tt.auditID, tt.key, tt.in, "u")
			tt.check(t, err)
		})
	}

	history, err := svc.ListHistory(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFoundWithLocationMismatchIsDiscrepancy(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	a := initiate(t, svc, "AUD-LOC")

	res, err := svc.Verify(context.Background(), a.ID, "A", VerifyInput{
		PhysicalStatus:    PhysicalFound,
		LocationMatched:   boolPtr(false),
		DiscrepancyReason: "moved to ward 3",
	}, "u")
	require.NoError(t, err)
	assert.True(t, res.Record.Discrepancy)
	assert.Equal(t, int64(1), res.OverallStats.DiscrepancyAssets)
	assert.Equal(t, int64(0), res.OverallStats.ReasonMissing)
}

func TestInitiateValidationAndConflict(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	seedAssets(t, db, "h2", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, InitiateInput{AuditCode: "X", HospitalID: "h1", AuditType: "yearly"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "auditType", ve.Field)

	_, err = svc.Initiate(ctx, InitiateInput{HospitalID: "h1", AuditType: TypeInternal})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "auditCode", ve.Field)

	initiate(t, svc, "AUD-DUP")
	_, err = svc.Initiate(ctx, InitiateInput{AuditCode: "AUD-DUP", HospitalID: "h1", AuditType: TypeInternal})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// 编号只在同一医院内唯一
	other, err := svc.Initiate(ctx, InitiateInput{AuditCode: "AUD-DUP", HospitalID: "h2", AuditType: TypeInternal})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, other.Status)
}

func TestInitiateSnapshotsScope(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d2", "C": "d2", "D": ""})
	svc := newTestService(t, db)
	ctx := context.Background()

	a, err := svc.Initiate(ctx, InitiateInput{
		AuditCode:        "AUD-SCOPE",
		HospitalID:       "h1",
		AuditType:        TypeStatutory,
		Scope:            asset.Scope{DepartmentIDs: []string{"d2"}},
		AssignedAuditors: []string{"u1", "u1", " u2 "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, []string(a.AssignedAuditors))

	page, err := svc.ListAuditAssets(ctx, a.ID, AssetFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.OverallStats.TotalAssets)
	require.Len(t, page.AuditAssets, 2)
	assert.Equal(t, "B", page.AuditAssets[0].AssetKey)
	assert.Equal(t, "D2", page.AuditAssets[0].DepartmentName)
	assert.Equal(t, "Room B", page.AuditAssets[0].ExpectedLocation)

	// 资产调拨后快照中的科室不变
	require.NoError(t, db.Model(&asset.Asset{}).Where("asset_key = ?", "B").Update("department_id", "d9").Error)
	page, err = svc.ListAuditAssets(ctx, a.ID, AssetFilter{DepartmentID: "d2"})
	require.NoError(t, err)
	assert.Len(t, page.AuditAssets, 2)

	empty, err := svc.Initiate(ctx, InitiateInput{
		AuditCode:  "AUD-EMPTY",
		HospitalID: "h1",
		AuditType:  TypeSurprise,
		Scope:      asset.Scope{Categories: []string{"none"}},
	})
	require.NoError(t, err)
	detail, err := svc.GetAudit(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, OverallStats{}, detail.OverallStats)

	// 空盘点可直接提交
	submitted, err := svc.Submit(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, submitted.Status)
}

func TestListAuditAssetsUsesFullRecordSetForRollups(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A1": "d1", "A2": "d1", "A3": "d1", "B1": "d2", "B2": "d2", "X1": ""})
	svc := newTestService(t, db)
	ctx := context.Background()
	a := initiate(t, svc, "AUD-PAGE")

	verify(t, svc, a.ID, "A1", PhysicalFound, true)
	verify(t, svc, a.ID, "B1", PhysicalDamaged, true)

	page, err := svc.ListAuditAssets(ctx, a.ID, AssetFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.AuditAssets, 2)
	assert.Equal(t, int64(6), page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, int64(6), page.OverallStats.TotalAssets)
	assert.Equal(t, int64(2), page.OverallStats.VerifiedAssets)

	require.Len(t, page.AssetsByDepartment, 3)
	assert.Equal(t, "d1", page.AssetsByDepartment[0].DepartmentID)
	assert.Equal(t, "d2", page.AssetsByDepartment[1].DepartmentID)
	assert.Equal(t, UnassignedDepartment, page.AssetsByDepartment[2].DepartmentID)

	var sum int64
	for _, g := range page.AssetsByDepartment {
		sum += g.Total
	}
	assert.Equal(t, page.OverallStats.TotalAssets, sum)

	filtered, err := svc.ListAuditAssets(ctx, a.ID, AssetFilter{Status: PhysicalPending})
	require.NoError(t, err)
	assert.Len(t, filtered.AuditAssets, 4)
	assert.Equal(t, int64(6), filtered.OverallStats.TotalAssets)

	unassigned, err := svc.ListAuditAssets(ctx, a.ID, AssetFilter{DepartmentID: UnassignedDepartment})
	require.NoError(t, err)
	require.Len(t, unassigned.AuditAssets, 1)
	assert.Equal(t, "X1", unassigned.AuditAssets[0].AssetKey)

	searched, err := svc.ListAuditAssets(ctx, a.ID, AssetFilter{Search: "asset b"})
	require.NoError(t, err)
	assert.Len(t, searched.AuditAssets, 2)

	_, err = svc.ListAuditAssets(ctx, a.ID, AssetFilter{Status: "lost"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestGetAuditSummary(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d1", "C": "d1", "D": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()
	a := initiate(t, svc, "AUD-SUM")

	verify(t, svc, a.ID, "A", PhysicalFound, true)
	verify(t, svc, a.ID, "B", PhysicalFound, false)
	verify(t, svc, a.ID, "C", PhysicalDamaged, true)

	summary, err := svc.GetAuditSummary(ctx, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{{PhysicalFound, 2}, {PhysicalDamaged, 1}}, summary)

	summary, err = svc.GetAuditSummary(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{{PhysicalFound, 2}, {PhysicalNotFound, 0}, {PhysicalDamaged, 1}, {PhysicalExcess, 0}}, summary)

	_, err = svc.GetAuditSummary(ctx, "missing", false)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestListAuditsFilters(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()

	first := initiate(t, svc, "AUD-LIST-1")
	initiate(t, svc, "AUD-LIST-2")
	_, err := svc.Close(ctx, first.ID)
	require.NoError(t, err)

	audits, p, err := svc.ListAudits(ctx, ListFilter{HospitalID: "h1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Total)
	assert.Equal(t, "AUD-LIST-2", audits[0].AuditCode)

	audits, _, err = svc.ListAudits(ctx, ListFilter{Status: StatusClosed})
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, first.ID, audits[0].ID)

	audits, _, err = svc.ListAudits(ctx, ListFilter{Search: "list-2", AuditType: TypePhysical})
	require.NoError(t, err)
	assert.Len(t, audits, 1)

	_, _, err = svc.ListAudits(ctx, ListFilter{Status: "archived"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAssignAuditors(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	svc := newTestService(t, db)
	ctx := context.Background()
	a := initiate(t, svc, "AUD-ASSIGN")

	updated, err := svc.AssignAuditors(ctx, a.ID, []string{"u3", "u4", "u3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u3", "u4"}, []string(updated.AssignedAuditors))

	detail, err := svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3", "u4"}, []string(detail.AssignedAuditors))

	_, err = svc.AssignAuditors(ctx, "missing", nil)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestConcurrentVerifyKeepsRollupsConsistent(t *testing.T) {
	db := openTestDB(t)
	keys := map[string]string{}
	for _, k := range []string{"K01", "K02", "K03", "K04", "K05", "K06", "K07", "K08", "K09", "K10"} {
		keys[k] = "d1"
	}
	seedAssets(t, db, "h1", keys)
	svc := newTestService(t, db, WithVerifyLocker(infra.NewLocalLocker(), 5*time.Second))
	a := initiate(t, svc, "AUD-CONC")

	var wg sync.WaitGroup
	for k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := svc.Verify(context.Background(), a.ID, key, VerifyInput{
				PhysicalStatus:  PhysicalFound,
				LocationMatched: boolPtr(true),
			}, "auditor")
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	detail, err := svc.GetAudit(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), detail.OverallStats.VerifiedAssets)
	assert.Equal(t, 100.0, detail.OverallStats.VerificationRate)
	assert.Equal(t, int64(10), detail.Revision)

	history, err := svc.ListHistory(context.Background(), a.ID, "")
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestVerifyRacingCloseNeverSucceedsAfterClose(t *testing.T) {
	db := openTestDB(t)
	keys := map[string]string{}
	for _, k := range []string{"K01", "K02", "K03", "K04", "K05", "K06", "K07", "K08"} {
		keys[k] = "d1"
	}
	seedAssets(t, db, "h1", keys)
	svc := newTestService(t, db)
	a := initiate(t, svc, "AUD-RACE")
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
	)
	for k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := svc.Verify(ctx, a.ID, key, VerifyInput{PhysicalStatus: PhysicalFound, LocationMatched: boolPtr(true)}, "auditor")
			if err == nil {
				mu.Lock()
				succeeded = append(succeeded, key)
				mu.Unlock()
				return
			}
			var stateErr *InvalidStateError
			assert.True(t, errors.As(err, &stateErr), "unexpected error: %v", err)
		}(k)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Close(ctx, a.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	// 成功的核查恰好对应已写入的流水，关闭之后没有任何写入
	history, err := svc.ListHistory(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, history, len(succeeded))

	detail, err := svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, detail.Status)
	assert.Equal(t, int64(len(succeeded)), detail.OverallStats.VerifiedAssets)
	for _, h := range history {
		assert.False(t, h.VerifiedAt.After(*detail.ClosedAt))
	}
}

func TestReportsScheduledOnSubmitAndClose(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d2"})
	sched := &fakeScheduler{}
	svc := newTestService(t, db, WithReportScheduler(sched))
	ctx := context.Background()

	a := initiate(t, svc, "AUD-RPT")
	verify(t, svc, a.ID, "A", PhysicalFound, true)
	verify(t, svc, a.ID, "B", PhysicalExcess, true)
	_, err := svc.Submit(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.Close(ctx, a.ID)
	require.NoError(t, err)

	ids := sched.scheduled()
	require.Len(t, ids, 2)

	// 关闭后报表元数据仍可更新
	require.NoError(t, svc.GenerateReport(ctx, ids[1]))
	reports, err := svc.ListReports(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	var ready *AuditReport
	for i := range reports {
		if reports[i].ID == ids[1] {
			ready = &reports[i]
		}
	}
	require.NotNil(t, ready)
	assert.Equal(t, ReportReady, ready.Status)
	assert.Equal(t, ReportClosed, ready.Kind)

	f, err := excelize.OpenFile(ready.FilePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetDiscrepancies)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[1][0])

	_, err = os.Stat(ready.FilePath)
	assert.NoError(t, err)
}

func TestReportEnqueueFailureDoesNotUndoSubmit(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	sched := &fakeScheduler{err: errors.New("redis down")}
	svc := newTestService(t, db, WithReportScheduler(sched))
	ctx := context.Background()

	a := initiate(t, svc, "AUD-RPT-FAIL")
	verify(t, svc, a.ID, "A", PhysicalFound, true)
	submitted, err := svc.Submit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, submitted.Status)

	reports, err := svc.ListReports(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ReportFailed, reports[0].Status)
	assert.Contains(t, reports[0].Error, "redis down")
}

func TestRequestReport(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1"})
	ctx := context.Background()

	t.Run("未配置调度器", func(t *testing.T) {
		svc := newTestService(t, db)
		a := initiate(t, svc, "AUD-MANUAL-OFF")

		_, err := svc.RequestReport(ctx, a.ID)
		assert.ErrorIs(t, err, ErrReportQueueDisabled)

		var notFound *NotFoundError
		_, err = svc.RequestReport(ctx, "missing")
		assert.ErrorAs(t, err, &notFound)

		_, err = svc.Close(ctx, a.ID)
		require.NoError(t, err)
		reports, err := svc.ListReports(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("已配置调度器", func(t *testing.T) {
		sched := &fakeScheduler{}
		svc := newTestService(t, db, WithReportScheduler(sched))
		a := initiate(t, svc, "AUD-MANUAL-ON")

		report, err := svc.RequestReport(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, ReportManual, report.Kind)
		assert.Equal(t, ReportQueued, report.Status)
		assert.Equal(t, []string{report.ID}, sched.scheduled())

		var notFound *NotFoundError
		_, err = svc.RequestReport(ctx, "missing")
		assert.ErrorAs(t, err, &notFound)
		assert.Len(t, sched.scheduled(), 1)
	})
}

func TestRollupCacheKeyedByRevision(t *testing.T) {
	db := openTestDB(t)
	seedAssets(t, db, "h1", map[string]string{"A": "d1", "B": "d1"})
	cache := newMemoryCache()
	svc := newTestService(t, db, WithRollupCache(cache))
	ctx := context.Background()
	a := initiate(t, svc, "AUD-CACHE")

	_, err := svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	_, err = svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	verify(t, svc, a.ID, "A", PhysicalFound, true)
	detail, err := svc.GetAudit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, int64(1), detail.OverallStats.VerifiedAssets)
}
