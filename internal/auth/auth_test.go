package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func setupAuth(t *testing.T) (*Service, *IdentityStore) {
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
	require.NoError(t, db.AutoMigrate(&User{}))

	users := NewIdentityStore(db)
	_, err = users.CreateUser(context.Background(), CreateUserInput{
		HospitalID: "h1",
		Username:   " Alice ",
		Password:   "correct-horse",
		Roles:      []string{session.RoleAuditor},
	})
	require.NoError(t, err)

	svc := NewService(users, NewJWTService("test-secret", "test", time.Hour), session.NewMemoryStore(), nil)
	return svc, users
}

func TestCreateUserRejectsDuplicatesAndUnknownRoles(t *testing.T) {
	_, users := setupAuth(t)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, CreateUserInput{HospitalID: "h1", Username: "alice", Password: "another-pass", Roles: []string{session.RoleViewer}})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = users.CreateUser(ctx, CreateUserInput{HospitalID: "h1", Username: "bob", Password: "another-pass", Roles: []string{"root"}})
	assert.ErrorIs(t, err, ErrUnknownRole)

	// 不同医院允许同名
	_, err = users.CreateUser(ctx, CreateUserInput{HospitalID: "h2", Username: "alice", Password: "another-pass", Roles: []string{session.RoleViewer}})
	assert.NoError(t, err)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginInput{HospitalID: "h1", Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{HospitalID: "h2", Username: "alice", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(ctx, LoginInput{HospitalID: "h1", Username: "ALICE", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.Token.TokenType)
	assert.Equal(t, []string{session.RoleAuditor}, res.Session.Roles)

	sess, err := svc.Authenticate(ctx, res.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, sess.ID)
	assert.Equal(t, "h1", sess.HospitalID)

	require.NoError(t, svc.Logout(ctx, sess))
	_, err = svc.Authenticate(ctx, res.Token.AccessToken)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDisabledUserCannotLogin(t *testing.T) {
	svc, users := setupAuth(t)
	ctx := context.Background()

	u, err := users.FindActiveUser(ctx, "h1", "alice")
	require.NoError(t, err)
	require.NoError(t, users.SetActive(ctx, u.ID, false))

	_, err = svc.Login(ctx, LoginInput{HospitalID: "h1", Username: "alice", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUnknownUserStillComparesPassword(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	var compared []string
	svc.missing = func(password string) {
		compared = append(compared, password)
		compareDummyPassword(password)
	}

	_, err := svc.Login(ctx, LoginInput{HospitalID: "h1", Username: "mallory", Password: "guess-1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{HospitalID: "h2", Username: "alice", Password: "guess-2"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{"guess-1", "guess-2"}, compared)

	// 用户存在时走真实哈希比对
	_, err = svc.Login(ctx, LoginInput{HospitalID: "h1", Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, compared, 2)

	assert.NotEmpty(t, dummyPasswordHash())
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	other := NewJWTService("other-secret", "test", time.Hour)
	tok, err := other.GenerateToken("s1", "u1", "h1", nil, time.Now())
	require.NoError(t, err)

	_, err = NewJWTService("test-secret", "test", time.Hour).ValidateToken(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := other.GenerateToken("s1", "u1", "h1", nil, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = other.ValidateToken(expired.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromBearer(t *testing.T) {
	tok, err := ExtractTokenFromBearer("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = ExtractTokenFromBearer("Basic abc")
	assert.Error(t, err)
	_, err = ExtractTokenFromBearer("")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := setupAuth(t)
	res, err := svc.Login(context.Background(), LoginInput{HospitalID: "h1", Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/audit", AuthMiddleware(svc), RequireRole(session.RoleAuditor), func(c *gin.Context) {
		sess, ok := session.FromContext(c.Request.Context())
		require.True(t, ok)
		common.ResponseSuccess(c, sess.Username)
	})
	r.GET("/manage", AuthMiddleware(svc), RequireRole(session.RoleAuditManager), func(c *gin.Context) {
		common.ResponseSuccess(c, nil)
	})

	do := func(path, token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/audit", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/audit", "garbage").Code)
	assert.Equal(t, http.StatusOK, do("/audit", res.Token.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, do("/manage", res.Token.AccessToken).Code)

	require.NoError(t, svc.Logout(context.Background(), res.Session))
	w := do("/audit", res.Token.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":2013`)
}
