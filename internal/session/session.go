// Package session 定义请求级会话对象。
// 会话由登录创建、登出关闭，通过 context.Context 显式传递给处理逻辑，不依赖任何全局可变状态。
package session

import (
	"context"
	"errors"
	"slices"
	"time"
)

// 角色
const (
	RoleAdmin        = "admin"
	RoleAuditManager = "audit_manager"
	RoleAuditor      = "auditor"
	RoleViewer       = "viewer"
)

var (
	// ErrNotFound 会话不存在、已过期或已关闭
	ErrNotFound = errors.New("session: not found")
	// ErrInvalid 会话缺少必要字段
	ErrInvalid = errors.New("session: invalid")
)

// Session 已登录用户的会话
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	HospitalID string    `json:"hospitalId"`
	Username   string    `json:"username"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// HasRole 是否拥有任一角色，admin 拥有全部角色
func (s *Session) HasRole(roles ...string) bool {
	if s == nil {
		return false
	}
	if slices.Contains(s.Roles, RoleAdmin) {
		return true
	}
	for _, r := range roles {
		if slices.Contains(s.Roles, r) {
			return true
		}
	}
	return false
}

// Expired 是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type contextKey struct{}

// WithSession 将会话放入上下文
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext 从上下文取出会话
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// Store 会话存储
type Store interface {
	// Open 保存新会话
	Open(ctx context.Context, s *Session) error
	// Get 读取有效会话，不存在时返回 ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Close 关闭会话，重复关闭不报错
	Close(ctx context.Context, id string) error
}
