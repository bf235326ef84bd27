package public

import (
	"context"
	"errors"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/sms"

	"github.com/gin-gonic/gin"
)

// GatewaySend 本地网关发送接口，供其他实例以 http 驱动调用
func (h *Handler) GatewaySend(c *gin.Context) {
	if h.LocalGateway == nil {
		respondError(c, response.CodeNotFound, "error.not_found", nil)
		return
	}
	var req sms.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	result, err := h.LocalGateway.Send(c.Request.Context(), req)
	if err != nil {
		respondGatewayError(c, err)
		return
	}
	response.Success(c, result)
}

// GatewayVerify 本地网关校验接口
func (h *Handler) GatewayVerify(c *gin.Context) {
	if h.LocalGateway == nil {
		respondError(c, response.CodeNotFound, "error.not_found", nil)
		return
	}
	var req sms.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	result, err := h.LocalGateway.Verify(c.Request.Context(), req)
	if err != nil {
		respondGatewayError(c, err)
		return
	}
	response.Success(c, result)
}

func respondGatewayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sms.ErrInvalidRequest):
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, response.CodeUnavailable, "error.request_canceled", err)
	default:
		respondError(c, response.CodeInternal, "error.internal", err)
	}
}
