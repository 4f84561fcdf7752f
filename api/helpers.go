package api

import (
	"net/http"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

// HealthCheck 存活检查
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: "hospital-asset-audit"})
	}
}

// ReadinessCheck 就绪检查，包含数据库与 Redis 连通性
func ReadinessCheck(db *gorm.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := infra.PingDatabase(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Reason: "database ping failed"})
			return
		}
		resp := ReadinessResponse{Status: "ready", Database: "connected", Redis: "disabled"}
		if rdb != nil {
			if err := infra.PingRedis(rdb); err != nil {
				c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Reason: "redis ping failed", Database: "connected"})
				return
			}
			resp.Redis = "connected"
		}
		c.JSON(http.StatusOK, resp)
	}
}
