package asset

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) *Repository {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Asset{}))

	repo := NewRepository(db)
	seed := []*Asset{
		{HospitalID: "h1", AssetKey: "A-001", Name: "CT Scanner", Category: "imaging", DepartmentID: "radiology", DepartmentName: "Radiology"},
		{HospitalID: "h1", AssetKey: "A-002", Name: "Ventilator", Category: "icu", DepartmentID: "icu", DepartmentName: "ICU"},
		{HospitalID: "h1", AssetKey: "A-003", Name: "Old Monitor", Category: "icu", DepartmentID: "icu", DepartmentName: "ICU", Status: StatusDisposed},
		{HospitalID: "h1", AssetKey: "A-004", Name: "Wheelchair", Category: "general"},
		{HospitalID: "h2", AssetKey: "A-001", Name: "X-Ray", Category: "imaging", DepartmentID: "radiology"},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), seed))
	return repo
}

func keys(assets []Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.AssetKey)
	}
	return out
}

func TestResolveScope(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		scope  Scope
		expect []string
	}{
		{"全部在用资产", Scope{}, []string{"A-001", "A-002", "A-004"}},
		{"按科室", Scope{DepartmentIDs: []string{"icu"}}, []string{"A-002"}},
		{"按分类与编号取交集", Scope{AssetKeys: []string{"A-001", "A-002"}, Categories: []string{"imaging"}}, []string{"A-001"}},
		{"无匹配", Scope{Categories: []string{"lab"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, err := repo.ResolveScope(ctx, nil, "h1", tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, keys(assets))
		})
	}
}

func TestCreateRejectsDuplicateKey(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Create(context.Background(), CreateInput{HospitalID: "h1", AssetKey: "A-001", Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicateAssetKey)

	a, err := repo.Create(context.Background(), CreateInput{HospitalID: "h3", AssetKey: "A-001", Name: "ok"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusActive, a.Status)
}

func TestList(t *testing.T) {
	repo := setupRepo(t)

	assets, total, err := repo.List(context.Background(), ListFilter{HospitalID: "h1", Search: "ve", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"A-002"}, keys(assets))

	_, total, err = repo.List(context.Background(), ListFilter{HospitalID: "h1", Status: string(StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
