package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 表示用户不存在或处于停用状态
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrUserExists 表示同一医院下用户名已被占用
	ErrUserExists = errors.New("auth: user already exists")
	// ErrUnknownRole 表示角色不在允许范围内
	ErrUnknownRole = errors.New("auth: unknown role")
)

// knownRoles 允许分配的角色
var knownRoles = map[string]bool{
	session.RoleAdmin:        true,
	session.RoleAuditManager: true,
	session.RoleAuditor:      true,
	session.RoleViewer:       true,
}

// User 系统用户
type User struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"id"`
	HospitalID   string                      `gorm:"size:64;not null;uniqueIndex:idx_user_hospital_name" json:"hospitalId"`
	Username     string                      `gorm:"size:100;not null;uniqueIndex:idx_user_hospital_name" json:"username"`
	DisplayName  string                      `gorm:"size:255" json:"displayName"`
	PasswordHash string                      `gorm:"size:255;not null" json:"-"`
	Roles        datatypes.JSONSlice[string] `json:"roles"`
	Active       bool                        `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 生成主键
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	HospitalID  string   `json:"hospitalId" binding:"required"`
	Username    string   `json:"username" binding:"required,min=3,max=100"`
	DisplayName string   `json:"displayName"`
	Password    string   `json:"password" binding:"required,min=8"`
	Roles       []string `json:"roles" binding:"required,min=1"`
}

// IdentityStore 用户身份存储
type IdentityStore struct {
	db *gorm.DB
}

// NewIdentityStore 创建身份存储
func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// CreateUser 创建用户，密码以 bcrypt 哈希保存
func (s *IdentityStore) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	username := normalizeUsername(input.Username)
	if username == "" || input.HospitalID == "" {
		return nil, fmt.Errorf("用户名与医院不能为空")
	}
	for _, r := range input.Roles {
		if !knownRoles[r] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, r)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("生成密码哈希失败: %w", err)
	}

	user := &User{
		HospitalID:   input.HospitalID,
		Username:     username,
		DisplayName:  input.DisplayName,
		PasswordHash: string(hash),
		Roles:        datatypes.JSONSlice[string](input.Roles),
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// FindActiveUser 按医院与用户名查询激活用户
func (s *IdentityStore) FindActiveUser(ctx context.Context, hospitalID, username string) (*User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, ErrUserNotFound
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("hospital_id = ? AND username = ? AND active = ?", hospitalID, username, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetActive 启用或停用用户
func (s *IdentityStore) SetActive(ctx context.Context, userID string, active bool) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CheckPassword 校验密码
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// dummyPasswordHash 用户不存在时参与比对的哈希，成本与真实密码一致
var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("no-such-user"), bcrypt.DefaultCost)
	return hash
})

// compareDummyPassword 用户不存在时同样执行一次 bcrypt 比对，避免响应时间暴露用户名是否存在
func compareDummyPassword(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(password))
}

func normalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
