package audit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func boolPtr(b bool) *bool { return &b }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(append(Models(), &asset.Asset{})...))
	return db
}

// seedAssets 向台账写入资产，departments 为 assetKey -> 科室
func seedAssets(t *testing.T, db *gorm.DB, hospitalID string, departments map[string]string) {
	t.Helper()
	assets := make([]*asset.Asset, 0, len(departments))
	for key, dept := range departments {
		assets = append(assets, &asset.Asset{
			HospitalID:     hospitalID,
			AssetKey:       key,
			Name:           "Asset " + key,
			DepartmentID:   dept,
			DepartmentName: strings.ToUpper(dept),
			Location:       "Room " + key,
		})
	}
	require.NoError(t, asset.NewRepository(db).BulkCreate(context.Background(), assets))
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, db *gorm.DB, opts ...ServiceOption) *Service {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]ServiceOption{WithClock(clock.Now), WithReportDir(t.TempDir())}, opts...)
	return NewService(db, asset.NewRepository(db), opts...)
}

func initiate(t *testing.T, svc *Service, code string) *Audit {
	t.Helper()
	a, err := svc.Initiate(context.Background(), InitiateInput{
		AuditCode:   code,
		HospitalID:  "h1",
		AuditType:   TypePhysical,
		InitiatedBy: "manager-1",
	})
	require.NoError(t, err)
	return a
}

func verify(t *testing.T, svc *Service, auditID, key string, status PhysicalStatus, matched bool) *VerifyResult {
	t.Helper()
	res, err := svc.Verify(context.Background(), auditID, key, VerifyInput{
		PhysicalStatus:  status,
		LocationMatched: boolPtr(matched),
	}, "auditor-1")
	require.NoError(t, err)
	return res
}

// fakeScheduler 记录投递的报表任务
type fakeScheduler struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeScheduler) ScheduleReport(_ context.Context, reportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, reportID)
	return nil
}

func (f *fakeScheduler) scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

// memoryCache 进程内汇总缓存
type memoryCache struct {
	mu    sync.Mutex
	items map[string]Rollup
	hits  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]Rollup)}
}

func (c *memoryCache) Get(_ context.Context, auditID string, revision int64) (*Rollup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[rollupKey(auditID, revision)]
	if ok {
		c.hits++
	}
	return &r, ok
}

func (c *memoryCache) Set(_ context.Context, auditID string, revision int64, r *Rollup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[rollupKey(auditID, revision)] = *r
}
