package service

import (
	"time"

	"github.com/panierscan/authcore/internal/constants"
)

// OTPOutcome 验证码流程操作结果类型（封闭集合）
type OTPOutcome string

const (
	OTPOutcomeSent               OTPOutcome = "sent"
	OTPOutcomeSkipped            OTPOutcome = "skipped"
	OTPOutcomeDailyLimitExceeded OTPOutcome = "daily_limit_exceeded"
	OTPOutcomeCooldownActive     OTPOutcome = "cooldown_active"
	OTPOutcomeTransientFailure   OTPOutcome = "transient_failure"
	OTPOutcomeInvalidInput       OTPOutcome = "invalid_input"
	OTPOutcomeVerified           OTPOutcome = "verified"
	OTPOutcomeIncorrectCode      OTPOutcome = "incorrect_code"
	OTPOutcomeSessionExpired     OTPOutcome = "session_expired"
	OTPOutcomeAlreadyConsumed    OTPOutcome = "already_consumed"
)

// SessionStatus 本地会话账本状态
type SessionStatus string

const (
	SessionStatusPending     SessionStatus = "pending"
	SessionStatusVerified    SessionStatus = "verified"
	SessionStatusExpired     SessionStatus = "expired"
	SessionStatusConsumed    SessionStatus = "consumed"
	SessionStatusInvalidated SessionStatus = "invalidated"
)

// Terminal 终态会话不会再回到 pending
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusExpired, SessionStatusConsumed, SessionStatusInvalidated:
		return true
	}
	return false
}

// VerificationSession 本地会话账本条目
type VerificationSession struct {
	SessionID         string        `json:"session_id"`
	PhoneNumber       string        `json:"phone_number"`
	Reason            string        `json:"reason"`
	Status            SessionStatus `json:"status"`
	AttemptsRemaining int           `json:"attempts_remaining"`
	Synthetic         bool          `json:"synthetic,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	SentAt            time.Time     `json:"sent_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty"`
}

// PendingVerificationContext 进行中的验证流程（每个安装实例一个槽位）
type PendingVerificationContext struct {
	PhoneNumber       string    `json:"phone_number"`
	SessionID         string    `json:"session_id"`
	Reason            string    `json:"reason"`
	Locale            string    `json:"locale"`
	StartedAt         time.Time `json:"started_at"`
	SentAt            time.Time `json:"sent_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	SealedCredentials string    `json:"sealed_credentials,omitempty"`
}

// HasCredentials 是否携带加密的登录凭据
func (p *PendingVerificationContext) HasCredentials() bool {
	return p != nil && p.SealedCredentials != ""
}

// Credentials 登录流程中暂存的凭据
type Credentials struct {
	Password string `json:"password"`
}

// RequestCodeInput 请求验证码输入
type RequestCodeInput struct {
	InstallationID string
	PhoneNumber    string
	Locale         string
	Reason         string
	Credentials    *Credentials
}

// RequestCodeResult 请求验证码结果
// Outcome 取值：sent / skipped / daily_limit_exceeded / transient_failure / invalid_input
type RequestCodeResult struct {
	Outcome           OTPOutcome `json:"outcome"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	SessionID         string     `json:"session_id,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at,omitempty"`
	Token             string     `json:"-"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	DailyRemaining    int        `json:"daily_remaining,omitempty"`
	Err               error      `json:"-"`
}

// VerifyCodeInput 校验验证码输入
type VerifyCodeInput struct {
	InstallationID string
	PhoneNumber    string
	SessionID      string
	Code           string
}

// VerifyCodeResult 校验验证码结果
// Outcome 取值：verified / incorrect_code / session_expired / already_consumed / transient_failure / invalid_input
type VerifyCodeResult struct {
	Outcome           OTPOutcome                  `json:"outcome"`
	PhoneNumber       string                      `json:"phone_number,omitempty"`
	SessionID         string                      `json:"session_id,omitempty"`
	Token             string                      `json:"-"`
	AttemptsRemaining int                         `json:"attempts_remaining,omitempty"`
	Context           *PendingVerificationContext `json:"-"`
	Credentials       *Credentials                `json:"-"`
	Err               error                       `json:"-"`
}

// Reason 验证原因，优先取待续上下文
func (r VerifyCodeResult) Reason() string {
	if r.Context != nil {
		return r.Context.Reason
	}
	return ""
}

// ResendCodeInput 重发验证码输入
type ResendCodeInput struct {
	InstallationID string
	PhoneNumber    string
}

// ResendCodeResult 重发验证码结果
// Outcome 取值：sent / cooldown_active / daily_limit_exceeded / transient_failure / invalid_input
type ResendCodeResult struct {
	Outcome          OTPOutcome `json:"outcome"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at,omitempty"`
	SecondsRemaining int        `json:"seconds_remaining,omitempty"`
	DailyRemaining   int        `json:"daily_remaining,omitempty"`
	Err              error      `json:"-"`

	// RetryAfterSeconds 每日上限触发时，距窗口内最早一次发送滚出的秒数
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// IsValidVerificationReason 校验验证原因
func IsValidVerificationReason(reason string) bool {
	switch reason {
	case constants.VerificationReasonRegistration,
		constants.VerificationReasonLogin,
		constants.VerificationReasonPhoneLinking,
		constants.VerificationReasonPasswordReset,
		constants.VerificationReasonPhoneReverification:
		return true
	}
	return false
}
