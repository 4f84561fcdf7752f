package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 令牌无法解析或已过期
var ErrInvalidToken = errors.New("auth: invalid token")

// JWTService JWT 令牌服务
// 令牌的 jti 即会话 ID，吊销依赖会话存储而非令牌黑名单
type JWTService struct {
	secretKey    []byte
	issuer       string
	accessExpiry time.Duration
}

// NewJWTService 创建 JWT 服务
func NewJWTService(secretKey, issuer string, accessExpiry time.Duration) *JWTService {
	if accessExpiry <= 0 {
		accessExpiry = 2 * time.Hour
	}
	return &JWTService{
		secretKey:    []byte(secretKey),
		issuer:       issuer,
		accessExpiry: accessExpiry,
	}
}

// TokenClaims JWT 声明
type TokenClaims struct {
	UserID     string   `json:"uid"`
	HospitalID string   `json:"hid"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

// SessionID 会话 ID
func (c *TokenClaims) SessionID() string {
	return c.ID
}

// Token 登录返回的访问令牌
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int64     `json:"expiresIn"` // 秒
	ExpiresAt   time.Time `json:"expiresAt"`
}

// GenerateToken 为会话签发访问令牌
func (s *JWTService) GenerateToken(sessionID, userID, hospitalID string, roles []string, now time.Time) (*Token, error) {
	expiresAt := now.Add(s.accessExpiry)
	claims := &TokenClaims{
		UserID:     userID,
		HospitalID: hospitalID,
		Roles:      roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("签名令牌失败: %w", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessExpiry.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken 验证并解析 JWT 令牌
func (s *JWTService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("无效的签名算法: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractTokenFromBearer 从 Bearer 头中提取令牌
func ExtractTokenFromBearer(authHeader string) (string, error) {
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: 缺少 Bearer 令牌", ErrInvalidToken)
	}
	return strings.TrimSpace(authHeader[len(prefix):]), nil
}
