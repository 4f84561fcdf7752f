package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSessionClosed 令牌对应的会话已登出或过期
	ErrSessionClosed = errors.New("auth: session closed")
)

// LoginInput 登录参数
type LoginInput struct {
	HospitalID string `json:"hospitalId" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token   *Token           `json:"token"`
	Session *session.Session `json:"session"`
}

// Service 认证服务：登录开启会话，登出关闭会话
type Service struct {
	users    *IdentityStore
	jwt      *JWTService
	sessions session.Store
	logger   *zap.Logger
	now      func() time.Time
	// missing 用户不存在时执行的等价比对
	missing  func(password string)
}

// NewService 创建认证服务
func NewService(users *IdentityStore, jwtSvc *JWTService, sessions session.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, jwt: jwtSvc, sessions: sessions, logger: logger, now: time.Now, missing: compareDummyPassword}
}

// Login 校验凭证并开启会话
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.users.FindActiveUser(ctx, input.HospitalID, input.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.missing(input.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(input.Password) {
		s.logger.Warn("登录密码错误", zap.String("hospital_id", input.HospitalID), zap.String("username", user.Username))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := &session.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		HospitalID: user.HospitalID,
		Username:   user.Username,
		Roles:      []string(user.Roles),
		CreatedAt:  now,
	}
	token, err := s.jwt.GenerateToken(sess.ID, user.ID, user.HospitalID, sess.Roles, now)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = token.ExpiresAt

	if err := s.sessions.Open(ctx, sess); err != nil {
		return nil, fmt.Errorf("开启会话失败: %w", err)
	}
	s.logger.Info("用户登录", zap.String("user_id", user.ID), zap.String("session_id", sess.ID))
	return &LoginResult{Token: token, Session: sess}, nil
}

// Authenticate 校验令牌并返回仍然有效的会话
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*session.Session, error) {
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionClosed
		}
		return nil, err
	}
	if sess.UserID != claims.UserID {
		return nil, ErrSessionClosed
	}
	return sess, nil
}

// Logout 关闭会话，之后该会话的令牌均被拒绝
func (s *Service) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return ErrSessionClosed
	}
	if err := s.sessions.Close(ctx, sess.ID); err != nil {
		return err
	}
	s.logger.Info("用户登出", zap.String("user_id", sess.UserID), zap.String("session_id", sess.ID))
	return nil
}
