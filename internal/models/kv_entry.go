package models

import "time"

// KVEntry 持久化键值条目
type KVEntry struct {
	Key       string     `gorm:"primaryKey;type:varchar(255)" json:"key"` // 键
	Value     []byte     `gorm:"not null" json:"-"`                       // 值
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`                 // 过期时间（空表示不过期）
	UpdatedAt time.Time  `json:"updated_at"`                              // 更新时间
}

// TableName 指定表名
func (KVEntry) TableName() string {
	return "kv_entries"
}
