package admin

import (
	"errors"
	"strings"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/i18n"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// GetLoginGuard 查看手机号登录保护记录
func (h *Handler) GetLoginGuard(c *gin.Context) {
	inspection, err := h.OperatorService.InspectLoginGuard(c.Request.Context(), strings.TrimSpace(c.Param("phone")))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPhone) {
			respondError(c, response.CodeBadRequest, "error.phone_invalid", nil)
			return
		}
		respondError(c, response.CodeUnavailable, "error.service_unavailable", err)
		return
	}
	data := gin.H{
		"phone_number": inspection.PhoneNumber,
		"status":       inspection.Status,
		"record":       inspection.Record,
	}
	if inspection.Status.Locked {
		data["lock_time_remaining_text"] = service.FormatRemainingTime(inspection.Status.LockTimeRemainingSeconds, i18n.ResolveLocale(c))
	}
	response.Success(c, data)
}

// UnlockLoginGuard 解除手机号登录锁定
func (h *Handler) UnlockLoginGuard(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	phoneNumber := strings.TrimSpace(c.Param("phone"))
	if err := h.OperatorService.UnlockLoginGuard(c.Request.Context(), operator, phoneNumber, getRequestID(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			respondError(c, response.CodeBadRequest, "error.phone_invalid", nil)
		case errors.Is(err, service.ErrOperatorNotFound):
			respondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		default:
			respondError(c, response.CodeInternal, "error.login_guard_unlock_failed", err)
		}
		return
	}
	response.Success(c, gin.H{"unlocked": true})
}
