package models

import "time"

// OperatorAuditLog 操作员审计日志
// 说明：记录后台对登录保护等数据的变更操作（如手动解锁）。
type OperatorAuditLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	OperatorID   uint      `gorm:"index;not null" json:"operator_id"`
	OperatorName string    `gorm:"type:varchar(100);index;not null;default:''" json:"operator_name"`
	Action       string    `gorm:"type:varchar(100);index;not null" json:"action"`
	Target       string    `gorm:"type:varchar(255);index;not null;default:''" json:"target"`
	RequestID    string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON   JSON      `gorm:"type:json" json:"detail"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (OperatorAuditLog) TableName() string {
	return "operator_audit_logs"
}
