package models

import "time"

// 网关侧验证会话状态
const (
	VerificationStatusPending     = "pending"
	VerificationStatusVerified    = "verified"
	VerificationStatusExpired     = "expired"
	VerificationStatusInvalidated = "invalidated"
	VerificationStatusSkipped     = "skipped"
)

// VerificationSession 短信验证码会话（自托管网关）
type VerificationSession struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                    // 主键
	SessionID    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"` // 会话ID
	PhoneNumber  string     `gorm:"type:varchar(32);index;not null" json:"phone_number"`     // E.164 手机号
	Purpose      string     `gorm:"type:varchar(32);index;not null" json:"purpose"`          // 用途
	CodeHash     string     `gorm:"not null" json:"-"`                                       // 验证码哈希（不返回给前端）
	Status       string     `gorm:"type:varchar(16);index;not null" json:"status"`           // 状态
	AttemptCount int        `gorm:"default:0" json:"attempt_count"`                          // 已尝试次数
	MaxAttempts  int        `gorm:"not null" json:"max_attempts"`                            // 最大尝试次数
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`                                 // 过期时间
	VerifiedAt   *time.Time `gorm:"index" json:"verified_at"`                                // 验证时间
	SentAt       time.Time  `gorm:"index" json:"sent_at"`                                    // 发送时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                                 // 创建时间
}

// TableName 指定表名
func (VerificationSession) TableName() string {
	return "verification_sessions"
}

// AttemptsRemaining 剩余可尝试次数
func (s *VerificationSession) AttemptsRemaining() int {
	remaining := s.MaxAttempts - s.AttemptCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
