package repository

import (
	"errors"
	"time"

	"github.com/panierscan/authcore/internal/models"

	"gorm.io/gorm"
)

// OperatorRepository 操作员数据访问接口
type OperatorRepository interface {
	GetByKeyHash(keyHash string) (*models.Operator, error)
	GetByID(id uint) (*models.Operator, error)
	List() ([]models.Operator, error)
	TouchLastSeen(id uint, at time.Time) error
}

// GormOperatorRepository GORM 实现
type GormOperatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository 创建操作员仓库
func NewOperatorRepository(db *gorm.DB) *GormOperatorRepository {
	return &GormOperatorRepository{db: db}
}

// GetByKeyHash 根据 API Key 摘要获取操作员
func (r *GormOperatorRepository) GetByKeyHash(keyHash string) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.Where("key_hash = ?", keyHash).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

// GetByID 根据 ID 获取操作员
func (r *GormOperatorRepository) GetByID(id uint) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.First(&operator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

// List 获取操作员列表
func (r *GormOperatorRepository) List() ([]models.Operator, error) {
	operators := make([]models.Operator, 0)
	if err := r.db.Order("id ASC").Find(&operators).Error; err != nil {
		return nil, err
	}
	return operators, nil
}

// TouchLastSeen 更新最后访问时间
func (r *GormOperatorRepository) TouchLastSeen(id uint, at time.Time) error {
	return r.db.Model(&models.Operator{}).Where("id = ?", id).UpdateColumn("last_seen_at", at).Error
}
