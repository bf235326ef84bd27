package constants

// 验证流程原因常量
const (
	VerificationReasonRegistration        = "registration"
	VerificationReasonLogin               = "login"
	VerificationReasonPhoneLinking        = "phone_linking"
	VerificationReasonPasswordReset       = "password_reset"
	VerificationReasonPhoneReverification = "phone_reverification"
)

// 登录日志状态常量
const (
	LoginLogStatusSuccess              = "success"
	LoginLogStatusFailed               = "failed"
	LoginLogStatusLocked               = "locked"
	LoginLogStatusThrottled            = "throttled"
	LoginLogStatusVerificationRequired = "verification_required"
)

// 登录失败原因常量
const (
	LoginLogFailReasonBadRequest         = "bad_request"
	LoginLogFailReasonCaptchaRequired    = "captcha_required"
	LoginLogFailReasonCaptchaInvalid     = "captcha_invalid"
	LoginLogFailReasonInvalidPhone       = "invalid_phone"
	LoginLogFailReasonInvalidCredentials = "invalid_credentials"
	LoginLogFailReasonAccountLocked      = "account_locked"
	LoginLogFailReasonTooFrequent        = "too_frequent"
	LoginLogFailReasonVerificationFailed = "verification_failed"
	LoginLogFailReasonBackendUnavailable = "backend_unavailable"
	LoginLogFailReasonInternalError      = "internal_error"
)

// 验证码提供方常量
const (
	CaptchaProviderNone      = "none"
	CaptchaProviderImage     = "image"
	CaptchaProviderTurnstile = "turnstile"
)

// 验证码场景常量
const (
	CaptchaSceneOTPRequest = "otp_request"
	CaptchaSceneLogin      = "login"
)

// 键值存储驱动常量
const (
	StoreDriverMemory   = "memory"
	StoreDriverDatabase = "database"
	StoreDriverRedis    = "redis"
)

// 短信网关与发送通道驱动常量
const (
	SMSGatewayDriverLocal = "local"
	SMSGatewayDriverHTTP  = "http"
	SMSSenderDriverLog    = "log"
	SMSSenderDriverHTTP   = "http"
)

// 操作员审计动作常量
const (
	OperatorActionLoginGuardUnlock = "login_guard_unlock"
)

// 请求头常量
const (
	HeaderInstallationID = "X-Installation-ID"
	HeaderOperatorKey    = "X-Operator-Key"
	HeaderGatewayKey     = "X-Gateway-Key"
)

// 请求上下文键常量
const (
	ContextKeyRequestID      = "request_id"
	ContextKeyInstallationID = "installation_id"
	ContextKeyOperator       = "operator"
)
