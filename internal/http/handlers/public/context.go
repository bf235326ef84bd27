package public

import (
	"strings"

	"github.com/panierscan/authcore/internal/constants"

	"github.com/gin-gonic/gin"
)

// getInstallationID 读取安装实例标识（由 InstallationMiddleware 写入）
func getInstallationID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(constants.ContextKeyInstallationID))
}

func getRequestID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyRequestID)
}
