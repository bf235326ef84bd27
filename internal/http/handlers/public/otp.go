package public

import (
	"strings"

	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/http/handlers/shared"
	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/i18n"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// OTPRequestRequest 请求验证码
type OTPRequestRequest struct {
	PhoneNumber    string                       `json:"phone_number" binding:"required"`
	Reason         string                       `json:"reason" binding:"required"`
	Locale         string                       `json:"locale"`
	CaptchaPayload shared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// OTPVerifyRequest 校验验证码
type OTPVerifyRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	SessionID   string `json:"session_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// OTPResendRequest 重发验证码
type OTPResendRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// RequestOTP 请求验证码
func (h *Handler) RequestOTP(c *gin.Context) {
	var req OTPRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if h.CaptchaService != nil {
		if err := h.CaptchaService.Verify(c.Request.Context(), constants.CaptchaSceneOTPRequest, req.CaptchaPayload.ToServicePayload(), c.ClientIP()); err != nil {
			respondCaptchaError(c, err)
			return
		}
	}

	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = i18n.ResolveLocale(c)
	}
	reason := strings.ToLower(strings.TrimSpace(req.Reason))
	result, err := h.OTPCoordinator.RequestCode(c.Request.Context(), service.RequestCodeInput{
		InstallationID: getInstallationID(c),
		PhoneNumber:    req.PhoneNumber,
		Locale:         locale,
		Reason:         reason,
	})
	if err != nil {
		respondCallerGoneError(c, err)
		return
	}

	switch result.Outcome {
	case service.OTPOutcomeSent:
		response.Success(c, gin.H{
			"outcome":         result.Outcome,
			"phone_number":    result.PhoneNumber,
			"session_id":      result.SessionID,
			"expires_at":      result.ExpiresAt,
			"daily_remaining": result.DailyRemaining,
		})
	case service.OTPOutcomeSkipped:
		response.Success(c, gin.H{
			"outcome":      result.Outcome,
			"phone_number": result.PhoneNumber,
			"next_step":    h.FlowRouter.RouteSkipped(reason, result, nil),
		})
	case service.OTPOutcomeDailyLimitExceeded:
		response.ErrorWithData(c, response.CodeTooManyRequests, i18n.T(i18n.ResolveLocale(c), "error.otp_daily_limit"), gin.H{
			"outcome":             result.Outcome,
			"retry_after_seconds": result.RetryAfterSeconds,
		})
	case service.OTPOutcomeInvalidInput:
		respondOTPInputError(c, result.Err)
	default:
		requestLog(c).Warnw("otp_request_transient_failure", "error", result.Err)
		response.ErrorWithData(c, response.CodeUnavailable, i18n.T(i18n.ResolveLocale(c), "error.otp_transient"), gin.H{
			"outcome": result.Outcome,
		})
	}
}

// VerifyOTP 校验验证码，并按验证原因给出下一步
// login 原因验证通过后直接使用暂存凭据续登，凭据不会返回给客户端
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	installationID := getInstallationID(c)
	result, err := h.OTPCoordinator.VerifyCode(c.Request.Context(), service.VerifyCodeInput{
		InstallationID: installationID,
		PhoneNumber:    req.PhoneNumber,
		SessionID:      req.SessionID,
		Code:           req.Code,
	})
	if err != nil {
		respondCallerGoneError(c, err)
		return
	}

	step := h.FlowRouter.Route(result.Reason(), result)
	locale := i18n.ResolveLocale(c)
	switch result.Outcome {
	case service.OTPOutcomeVerified:
		data := gin.H{
			"outcome":      result.Outcome,
			"phone_number": result.PhoneNumber,
			"next_step":    step,
		}
		if step.Action == service.ActionRetryLoginThenEnterApp {
			login, err := h.LoginOrchestrator.ResumeLogin(c.Request.Context(), service.ResumeLoginInput{
				InstallationID: installationID,
				Verification:   result,
				ClientIP:       c.ClientIP(),
				UserAgent:      c.Request.UserAgent(),
				RequestID:      getRequestID(c),
			})
			if err != nil {
				respondCallerGoneError(c, err)
				return
			}
			if login.Outcome != service.LoginOutcomeAuthenticated {
				respondLoginResult(c, login)
				return
			}
			data["login"] = loginSuccessView(login)
		}
		response.Success(c, data)
	case service.OTPOutcomeIncorrectCode:
		response.ErrorWithData(c, response.CodeBadRequest, i18n.Sprintf(locale, "error.otp_incorrect_code", result.AttemptsRemaining), gin.H{
			"outcome":            result.Outcome,
			"attempts_remaining": result.AttemptsRemaining,
			"next_step":          step,
		})
	case service.OTPOutcomeSessionExpired:
		response.ErrorWithData(c, response.CodeGone, i18n.T(locale, "error.otp_session_expired"), gin.H{
			"outcome":   result.Outcome,
			"next_step": step,
		})
	case service.OTPOutcomeAlreadyConsumed:
		response.ErrorWithData(c, response.CodeConflict, i18n.T(locale, "error.otp_already_consumed"), gin.H{
			"outcome":   result.Outcome,
			"next_step": step,
		})
	case service.OTPOutcomeInvalidInput:
		respondOTPInputError(c, result.Err)
	default:
		requestLog(c).Warnw("otp_verify_transient_failure", "error", result.Err)
		response.ErrorWithData(c, response.CodeUnavailable, i18n.T(locale, "error.otp_transient"), gin.H{
			"outcome":   result.Outcome,
			"next_step": step,
		})
	}
}

// ResendOTP 重发验证码
func (h *Handler) ResendOTP(c *gin.Context) {
	var req OTPResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	result, err := h.OTPCoordinator.ResendCode(c.Request.Context(), service.ResendCodeInput{
		InstallationID: getInstallationID(c),
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		respondCallerGoneError(c, err)
		return
	}

	locale := i18n.ResolveLocale(c)
	switch result.Outcome {
	case service.OTPOutcomeSent:
		response.Success(c, gin.H{
			"outcome":         result.Outcome,
			"phone_number":    result.PhoneNumber,
			"session_id":      result.SessionID,
			"expires_at":      result.ExpiresAt,
			"daily_remaining": result.DailyRemaining,
		})
	case service.OTPOutcomeCooldownActive:
		response.ErrorWithData(c, response.CodeTooManyRequests, i18n.Sprintf(locale, "error.otp_cooldown", result.SecondsRemaining), gin.H{
			"outcome":           result.Outcome,
			"seconds_remaining": result.SecondsRemaining,
		})
	case service.OTPOutcomeDailyLimitExceeded:
		response.ErrorWithData(c, response.CodeTooManyRequests, i18n.T(locale, "error.otp_daily_limit"), gin.H{
			"outcome":             result.Outcome,
			"retry_after_seconds": result.RetryAfterSeconds,
		})
	case service.OTPOutcomeInvalidInput:
		respondOTPInputError(c, result.Err)
	default:
		requestLog(c).Warnw("otp_resend_transient_failure", "error", result.Err)
		response.ErrorWithData(c, response.CodeUnavailable, i18n.T(locale, "error.otp_transient"), gin.H{
			"outcome": result.Outcome,
		})
	}
}

// GetPendingOTP 读取当前安装实例未完成的验证流程（用于重启后恢复）
func (h *Handler) GetPendingOTP(c *gin.Context) {
	pending := h.OTPCoordinator.LoadPendingContext(c.Request.Context(), getInstallationID(c))
	if pending == nil {
		response.Success(c, gin.H{"pending": nil})
		return
	}
	resendWait := h.OTPCoordinator.ResendWaitSeconds(pending)
	response.Success(c, gin.H{
		"pending": gin.H{
			"phone_number":        pending.PhoneNumber,
			"session_id":          pending.SessionID,
			"reason":              pending.Reason,
			"locale":              pending.Locale,
			"started_at":          pending.StartedAt,
			"sent_at":             pending.SentAt,
			"expires_at":          pending.ExpiresAt,
			"resend_available":    resendWait == 0,
			"resend_wait_seconds": resendWait,
			"has_credentials":     pending.HasCredentials(),
		},
	})
}

// AbandonPendingOTP 放弃当前验证流程
func (h *Handler) AbandonPendingOTP(c *gin.Context) {
	if err := h.OTPCoordinator.AbandonPendingContext(c.Request.Context(), getInstallationID(c)); err != nil {
		respondWithMappedError(c, err, otpInputErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, gin.H{"abandoned": true})
}
