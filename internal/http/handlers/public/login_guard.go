package public

import (
	"strings"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/i18n"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// GetLoginGuardStatus 查询手机号登录保护状态（剩余次数、锁定剩余时间）
func (h *Handler) GetLoginGuardStatus(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("phone"))
	if raw == "" {
		respondError(c, response.CodeBadRequest, "error.phone_invalid", nil)
		return
	}
	number, err := phone.Normalize(raw, h.Config.OTP.PrimaryRegion)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.phone_invalid", nil)
		return
	}

	status := h.LoginGuard.GetStatus(c.Request.Context(), number.E164)
	data := gin.H{
		"phone_number":                number.E164,
		"locked":                      status.Locked,
		"remaining_attempts":          status.RemainingAttempts,
		"lock_time_remaining_seconds": status.LockTimeRemainingSeconds,
	}
	if status.Locked {
		data["lock_time_remaining_text"] = service.FormatRemainingTime(status.LockTimeRemainingSeconds, i18n.ResolveLocale(c))
	}
	response.Success(c, data)
}
