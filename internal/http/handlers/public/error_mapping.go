package public

import (
	"context"
	"errors"

	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var otpInputErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidPhone, code: response.CodeBadRequest, key: "error.phone_invalid"},
	{target: service.ErrInvalidReason, code: response.CodeBadRequest, key: "error.reason_invalid"},
	{target: service.ErrInvalidInstallation, code: response.CodeBadRequest, key: "error.installation_required"},
	{target: service.ErrInvalidCode, code: response.CodeBadRequest, key: "error.code_invalid"},
	{target: service.ErrNoSessionToResend, code: response.CodeNotFound, key: "error.otp_no_session"},
	{target: service.ErrCredentialsMissing, code: response.CodeBadRequest, key: "error.credentials_missing"},
}

var captchaErrorRules = []mappedHandlerError{
	{target: service.ErrCaptchaRequired, code: response.CodeBadRequest, key: "error.captcha_required"},
	{target: service.ErrCaptchaInvalid, code: response.CodeBadRequest, key: "error.captcha_invalid"},
	{target: service.ErrCaptchaConfigInvalid, code: response.CodeInternal, key: "error.captcha_unavailable"},
	{target: service.ErrCaptchaVerifyFailed, code: response.CodeUnavailable, key: "error.captcha_verify_failed"},
}

var callerGoneErrorRules = []mappedHandlerError{
	{target: context.Canceled, code: response.CodeUnavailable, key: "error.request_canceled"},
	{target: context.DeadlineExceeded, code: response.CodeUnavailable, key: "error.service_unavailable"},
}

func respondOTPInputError(c *gin.Context, err error) {
	respondWithMappedError(c, err, otpInputErrorRules, response.CodeBadRequest, "error.bad_request")
}

func respondCaptchaError(c *gin.Context, err error) {
	respondWithMappedError(c, err, captchaErrorRules, response.CodeInternal, "error.captcha_verify_failed")
}

func respondCallerGoneError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(callerGoneErrorRules, otpInputErrorRules), response.CodeInternal, "error.internal")
}
