package public

import (
	"errors"

	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/http/handlers/shared"
	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/i18n"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 手机号密码登录
type LoginRequest struct {
	PhoneNumber    string                       `json:"phone_number" binding:"required"`
	Password       string                       `json:"password" binding:"required"`
	CaptchaPayload shared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// Login 手机号密码登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if h.CaptchaService != nil {
		if err := h.CaptchaService.Verify(c.Request.Context(), constants.CaptchaSceneLogin, req.CaptchaPayload.ToServicePayload(), c.ClientIP()); err != nil {
			h.recordCaptchaRejection(c, req.PhoneNumber, err)
			respondCaptchaError(c, err)
			return
		}
	}

	result, err := h.LoginOrchestrator.Login(c.Request.Context(), service.LoginInput{
		InstallationID: getInstallationID(c),
		PhoneNumber:    req.PhoneNumber,
		Password:       req.Password,
		Locale:         i18n.ResolveLocale(c),
		ClientIP:       c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		RequestID:      getRequestID(c),
	})
	if err != nil {
		respondCallerGoneError(c, err)
		return
	}
	if result.Outcome == service.LoginOutcomeAuthenticated {
		response.Success(c, loginSuccessView(result))
		return
	}
	if result.Outcome == service.LoginOutcomeVerificationRequired && result.Verification != nil {
		response.Success(c, gin.H{
			"outcome":      result.Outcome,
			"phone_number": result.PhoneNumber,
			"verification": gin.H{
				"session_id":      result.Verification.SessionID,
				"expires_at":      result.Verification.ExpiresAt,
				"daily_remaining": result.Verification.DailyRemaining,
			},
		})
		return
	}
	respondLoginResult(c, result)
}

func (h *Handler) recordCaptchaRejection(c *gin.Context, phoneNumber string, err error) {
	if h.PhoneLoginLogService == nil {
		return
	}
	failReason := constants.LoginLogFailReasonCaptchaInvalid
	if errors.Is(err, service.ErrCaptchaRequired) {
		failReason = constants.LoginLogFailReasonCaptchaRequired
	}
	if recordErr := h.PhoneLoginLogService.Record(service.RecordPhoneLoginInput{
		PhoneNumber:    phoneNumber,
		InstallationID: getInstallationID(c),
		Status:         constants.LoginLogStatusFailed,
		FailReason:     failReason,
		ClientIP:       c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		RequestID:      getRequestID(c),
	}); recordErr != nil {
		requestLog(c).Warnw("phone_login_log_record_failed", "error", recordErr)
	}
}

func loginSuccessView(result service.LoginResult) gin.H {
	return gin.H{
		"outcome":       result.Outcome,
		"phone_number":  result.PhoneNumber,
		"session_token": result.SessionToken,
		"account_id":    result.AccountID,
	}
}

// respondLoginResult 输出登录失败类结果
func respondLoginResult(c *gin.Context, result service.LoginResult) {
	locale := i18n.ResolveLocale(c)
	switch result.Outcome {
	case service.LoginOutcomeInvalidCredentials:
		response.ErrorWithData(c, response.CodeUnauthorized, i18n.Sprintf(locale, "error.login_invalid_credentials", result.RemainingAttempts), gin.H{
			"outcome":            result.Outcome,
			"remaining_attempts": result.RemainingAttempts,
		})
	case service.LoginOutcomeLocked:
		remaining := service.FormatRemainingTime(result.LockTimeRemainingSeconds, locale)
		response.ErrorWithData(c, response.CodeLocked, i18n.Sprintf(locale, "error.login_locked", remaining), gin.H{
			"outcome":                     result.Outcome,
			"lock_time_remaining_seconds": result.LockTimeRemainingSeconds,
			"lock_time_remaining_text":    remaining,
		})
	case service.LoginOutcomeThrottled:
		response.ErrorWithData(c, response.CodeTooManyRequests, i18n.Sprintf(locale, "error.login_throttled", result.RetryAfterSeconds), gin.H{
			"outcome":             result.Outcome,
			"retry_after_seconds": result.RetryAfterSeconds,
		})
	case service.LoginOutcomeVerificationBlocked:
		response.ErrorWithData(c, response.CodeTooManyRequests, i18n.T(locale, "error.login_verification_blocked"), gin.H{
			"outcome":             result.Outcome,
			"retry_after_seconds": result.RetryAfterSeconds,
		})
	case service.LoginOutcomeInvalidInput:
		respondOTPInputError(c, result.Err)
	default:
		requestLog(c).Warnw("login_backend_unavailable", "outcome", result.Outcome, "error", result.Err)
		response.ErrorWithData(c, response.CodeUnavailable, i18n.T(locale, "error.auth_backend_unavailable"), gin.H{
			"outcome": result.Outcome,
		})
	}
}
