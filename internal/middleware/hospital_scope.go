package middleware

import (
	"context"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/common"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/gin-gonic/gin"
)

// HeaderHospitalID 管理员指定医院的请求头
const HeaderHospitalID = "X-Hospital-ID"

type hospitalKey struct{}

// HospitalScope 解析本次请求可访问的医院
// 管理员可通过 X-Hospital-ID 指定医院，不指定时可访问全部医院；其余用户固定为会话所属医院
func HospitalScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := session.FromContext(c.Request.Context())
		if !ok {
			common.AbortWithError(c, common.CodeUnauthorized, "")
			return
		}

		hospitalID := sess.HospitalID
		if sess.HasRole(session.RoleAdmin) {
			hospitalID = c.GetHeader(HeaderHospitalID)
		}
		c.Request = c.Request.WithContext(WithHospital(c.Request.Context(), hospitalID))
		c.Next()
	}
}

// WithHospital 将医院范围写入上下文
func WithHospital(ctx context.Context, hospitalID string) context.Context {
	return context.WithValue(ctx, hospitalKey{}, hospitalID)
}

// HospitalFromContext 读取医院范围，空字符串表示不限
func HospitalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(hospitalKey{}).(string)
	return id
}
