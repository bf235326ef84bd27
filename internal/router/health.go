package router

import (
	"context"
	"net/http"
	"time"

	"github.com/panierscan/authcore/internal/logger"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler 健康检查，Redis 不可达时返回 503
func HealthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warnw("healthz_redis_unreachable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
