package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Operator 运营后台操作员
type Operator struct {
	ID         uint       `gorm:"primarykey" json:"id"`                               // 主键
	Name       string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"` // 名称
	KeyHash    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`     // API Key 的 SHA-256 摘要
	Roles      StringList `gorm:"type:json" json:"roles"`                             // 角色列表
	LastSeenAt *time.Time `json:"last_seen_at"`                                       // 最后访问时间
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt  time.Time  `json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (Operator) TableName() string {
	return "operators"
}

// HashOperatorKey 计算操作员 API Key 摘要
func HashOperatorKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
