package models

import (
	"errors"
	"strings"

	"github.com/panierscan/authcore/internal/logger"

	"gorm.io/gorm"
)

// OperatorSeed 配置文件中声明的操作员
type OperatorSeed struct {
	Name  string
	Key   string
	Roles []string
}

// InitOperators 按配置同步操作员账号（按名称幂等）
func InitOperators(db *gorm.DB, seeds []OperatorSeed) ([]Operator, error) {
	synced := make([]Operator, 0, len(seeds))
	for _, seed := range seeds {
		name := strings.TrimSpace(seed.Name)
		key := strings.TrimSpace(seed.Key)
		if name == "" || key == "" {
			logger.Warnw("operator_seed_skipped", "name", name, "reason", "name_or_key_empty")
			continue
		}
		if len(key) < 16 {
			logger.Warnw("operator_key_too_short", "name", name, "min_length", 16)
		}

		var operator Operator
		err := db.Where("name = ?", name).First(&operator).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			operator = Operator{
				Name:    name,
				KeyHash: HashOperatorKey(key),
				Roles:   StringList(seed.Roles),
			}
			if err := db.Create(&operator).Error; err != nil {
				return nil, err
			}
			logger.Infow("operator_created", "name", name, "roles", seed.Roles)
		case err != nil:
			return nil, err
		default:
			operator.KeyHash = HashOperatorKey(key)
			operator.Roles = StringList(seed.Roles)
			if err := db.Save(&operator).Error; err != nil {
				return nil, err
			}
		}
		synced = append(synced, operator)
	}
	return synced, nil
}
