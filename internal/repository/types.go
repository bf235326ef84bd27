package repository

import "time"

// VerificationSessionListFilter 查询验证会话列表的过滤条件
type VerificationSessionListFilter struct {
	Page        int
	PageSize    int
	PhoneNumber string
	Status      string
	Purpose     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PhoneLoginLogListFilter 查询手机号登录日志列表的过滤条件
type PhoneLoginLogListFilter struct {
	Page           int
	PageSize       int
	PhoneNumber    string
	Status         string
	FailReason     string
	ClientIP       string
	InstallationID string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// OperatorAuditLogListFilter 查询操作员审计日志列表的过滤条件
type OperatorAuditLogListFilter struct {
	Page        int
	PageSize    int
	OperatorID  uint
	Action      string
	Target      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
