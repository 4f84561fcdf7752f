package auth

import (
	"errors"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
)

// sessionKey gin 上下文中的会话键
const sessionKey = "session"

// AuthMiddleware 认证中间件
// 通过后会话同时写入 gin 上下文与请求 context，业务层只从 context 读取
func AuthMiddleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if err != nil {
			common.AbortWithError(c, common.CodeUnauthorized, "")
			return
		}

		sess, err := svc.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, ErrSessionClosed):
			common.AbortWithError(c, common.CodeSessionClosed, "")
			return
		case errors.Is(err, ErrInvalidToken):
			common.AbortWithError(c, common.CodeUnauthorized, "令牌无效或已过期")
			return
		default:
			common.AbortWithError(c, common.CodeInternalError, "")
			return
		}

		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireRole 要求会话拥有任一角色，admin 总是放行
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			common.AbortWithError(c, common.CodeUnauthorized, "")
			return
		}
		if !sess.HasRole(roles...) {
			common.AbortWithError(c, common.CodeForbidden, "")
			return
		}
		c.Next()
	}
}

// CurrentSession 获取当前请求的会话
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess, true
		}
	}
	return session.FromContext(c.Request.Context())
}
