package sms

import (
	"context"
	"errors"
	"time"
)

// ErrGatewayUnavailable 网关不可达或返回无法识别的响应
var ErrGatewayUnavailable = errors.New("sms gateway unavailable")

// SendStatus 发送结果状态
type SendStatus string

const (
	SendStatusSent               SendStatus = "sent"
	SendStatusSkipped            SendStatus = "skipped"
	SendStatusDailyLimitExceeded SendStatus = "daily_limit_exceeded"
	SendStatusCooldown           SendStatus = "cooldown"
)

// VerifyReason 验证失败原因
type VerifyReason string

const (
	VerifyReasonNone              VerifyReason = ""
	VerifyReasonExpired           VerifyReason = "expired"
	VerifyReasonAlreadyVerified   VerifyReason = "already_verified"
	VerifyReasonIncorrect         VerifyReason = "incorrect"
	VerifyReasonNotFound          VerifyReason = "not_found"
	VerifyReasonAttemptsExhausted VerifyReason = "attempts_exhausted"
)

// SendRequest 发送验证码请求
type SendRequest struct {
	PhoneNumber       string `json:"phone_number"`
	Purpose           string `json:"purpose"`
	Locale            string `json:"locale"`
	Resend            bool   `json:"resend"`
	PreviousSessionID string `json:"previous_session_id,omitempty"`
}

// SendResult 发送验证码结果
type SendResult struct {
	Status            SendStatus `json:"status"`
	SessionID         string     `json:"session_id,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	DailyRemaining    int        `json:"daily_remaining"`
	Token             string     `json:"token,omitempty"`
}

// VerifyRequest 校验验证码请求
type VerifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
	Code        string `json:"code"`
}

// VerifyResult 校验验证码结果
type VerifyResult struct {
	Verified          bool         `json:"verified"`
	Token             string       `json:"token,omitempty"`
	Reason            VerifyReason `json:"reason,omitempty"`
	AttemptsRemaining int          `json:"attempts_remaining"`
}

// Gateway 短信验证码网关
// 返回 error 表示传输层或未知失败，业务结果通过结构化字段表达
type Gateway interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}
