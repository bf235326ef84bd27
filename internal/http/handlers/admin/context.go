package admin

import (
	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// getOperator 读取 OperatorAuthMiddleware 写入的操作员身份
func getOperator(c *gin.Context) (*service.OperatorIdentity, bool) {
	value, exists := c.Get(constants.ContextKeyOperator)
	if !exists {
		respondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return nil, false
	}
	operator, ok := value.(*service.OperatorIdentity)
	if !ok || operator == nil || operator.ID == 0 {
		respondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return nil, false
	}
	return operator, true
}

func getRequestID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyRequestID)
}
