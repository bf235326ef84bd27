package service

import "errors"

var (
	// ErrInvalidPhone 手机号无效
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidReason 验证原因无效
	ErrInvalidReason = errors.New("invalid verification reason")
	// ErrInvalidInstallation 安装标识缺失
	ErrInvalidInstallation = errors.New("installation id required")
	// ErrInvalidCode 验证码格式无效
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrSealKeyInvalid 凭据加密密钥无效
	ErrSealKeyInvalid = errors.New("seal key invalid")
	// ErrSealedPayloadInvalid 加密凭据无法解开
	ErrSealedPayloadInvalid = errors.New("sealed payload invalid")
	// ErrPendingContextCorrupt 待续验证上下文损坏
	ErrPendingContextCorrupt = errors.New("pending verification context corrupt")
	// ErrAuthBackendUnavailable 认证后端不可用
	ErrAuthBackendUnavailable = errors.New("auth backend unavailable")
	// ErrCredentialsMissing 续登缺少凭据
	ErrCredentialsMissing = errors.New("sealed credentials missing")
	// ErrCaptchaRequired 需要验证码
	ErrCaptchaRequired = errors.New("captcha required")
	// ErrCaptchaInvalid 验证码错误
	ErrCaptchaInvalid = errors.New("captcha invalid")
	// ErrCaptchaConfigInvalid 验证码配置无效
	ErrCaptchaConfigInvalid = errors.New("captcha config invalid")
	// ErrCaptchaVerifyFailed 验证码校验请求失败
	ErrCaptchaVerifyFailed = errors.New("captcha verify failed")
	// ErrOperatorNotFound 操作员不存在
	ErrOperatorNotFound = errors.New("operator not found")
	// ErrOperatorKeyInvalid 操作员密钥无效
	ErrOperatorKeyInvalid = errors.New("operator key invalid")
)
