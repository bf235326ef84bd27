package models

import "time"

// PhoneLoginLog 手机号登录日志
// 说明：记录每次手机号密码登录的结果，用于运营审计与暴力破解排查。
type PhoneLoginLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                // 主键
	PhoneNumber    string    `gorm:"type:varchar(32);index;not null" json:"phone_number"` // E.164 手机号
	Status         string    `gorm:"type:varchar(32);index;not null" json:"status"`       // 登录结果
	FailReason     string    `gorm:"type:varchar(64);index" json:"fail_reason"`           // 失败原因枚举
	InstallationID string    `gorm:"type:varchar(64);index" json:"installation_id"`       // 安装实例ID
	ClientIP       string    `gorm:"type:varchar(64);index" json:"client_ip"`             // 客户端IP
	UserAgent      string    `gorm:"type:text" json:"user_agent"`                         // 客户端UA
	RequestID      string    `gorm:"type:varchar(64);index" json:"request_id"`            // 请求追踪ID
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                             // 记录时间
}

// TableName 指定表名
func (PhoneLoginLog) TableName() string {
	return "phone_login_logs"
}
