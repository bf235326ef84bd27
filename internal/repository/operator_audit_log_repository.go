package repository

import (
	"github.com/panierscan/authcore/internal/models"

	"gorm.io/gorm"
)

// OperatorAuditLogRepository 操作员审计日志数据访问接口
type OperatorAuditLogRepository interface {
	Create(log *models.OperatorAuditLog) error
	ListAdmin(filter OperatorAuditLogListFilter) ([]models.OperatorAuditLog, int64, error)
}

// GormOperatorAuditLogRepository GORM 实现
type GormOperatorAuditLogRepository struct {
	db *gorm.DB
}

// NewOperatorAuditLogRepository 创建操作员审计日志仓库
func NewOperatorAuditLogRepository(db *gorm.DB) *GormOperatorAuditLogRepository {
	return &GormOperatorAuditLogRepository{db: db}
}

// Create 创建审计日志
func (r *GormOperatorAuditLogRepository) Create(log *models.OperatorAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// ListAdmin 管理端查询审计日志
func (r *GormOperatorAuditLogRepository) ListAdmin(filter OperatorAuditLogListFilter) ([]models.OperatorAuditLog, int64, error) {
	query := r.db.Model(&models.OperatorAuditLog{})
	if filter.OperatorID != 0 {
		query = query.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Target != "" {
		query = query.Where("target = ?", filter.Target)
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

	logs := make([]models.OperatorAuditLog, 0)
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
