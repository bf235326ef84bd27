package repository

import (
	"github.com/panierscan/authcore/internal/models"

	"gorm.io/gorm"
)

// PhoneLoginLogRepository 手机号登录日志数据访问接口
type PhoneLoginLogRepository interface {
	Create(log *models.PhoneLoginLog) error
	ListAdmin(filter PhoneLoginLogListFilter) ([]models.PhoneLoginLog, int64, error)
}

// GormPhoneLoginLogRepository GORM 实现
type GormPhoneLoginLogRepository struct {
	db *gorm.DB
}

// NewPhoneLoginLogRepository 创建手机号登录日志仓库
func NewPhoneLoginLogRepository(db *gorm.DB) *GormPhoneLoginLogRepository {
	return &GormPhoneLoginLogRepository{db: db}
}

// Create 创建登录日志
func (r *GormPhoneLoginLogRepository) Create(log *models.PhoneLoginLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// ListAdmin 管理端查询登录日志
func (r *GormPhoneLoginLogRepository) ListAdmin(filter PhoneLoginLogListFilter) ([]models.PhoneLoginLog, int64, error) {
	query := r.db.Model(&models.PhoneLoginLog{})
	if filter.PhoneNumber != "" {
		query = query.Where("phone_number = ?", filter.PhoneNumber)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FailReason != "" {
		query = query.Where("fail_reason = ?", filter.FailReason)
	}
	if filter.ClientIP != "" {
		query = query.Where("client_ip = ?", filter.ClientIP)
	}
	if filter.InstallationID != "" {
		query = query.Where("installation_id = ?", filter.InstallationID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.PhoneLoginLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
