package repository

import (
	"errors"
	"time"

	"github.com/panierscan/authcore/internal/models"

	"gorm.io/gorm"
)

// VerificationSessionRepository 网关验证会话数据访问接口
type VerificationSessionRepository interface {
	Create(session *models.VerificationSession) error
	GetBySessionID(sessionID string) (*models.VerificationSession, error)
	GetLatestByPhone(phoneNumber string) (*models.VerificationSession, error)
	CountSentSince(phoneNumber string, since time.Time) (int64, error)
	InvalidatePending(phoneNumber string) (int64, error)
	IncrementAttempt(id uint) error
	MarkVerified(id uint, verifiedAt time.Time) (bool, error)
	MarkExpired(id uint) error
	ListAdmin(filter VerificationSessionListFilter) ([]models.VerificationSession, int64, error)
	DeleteCreatedBefore(cutoff time.Time) (int64, error)
}

// GormVerificationSessionRepository GORM 实现
type GormVerificationSessionRepository struct {
	db *gorm.DB
}

// NewVerificationSessionRepository 创建验证会话仓库
func NewVerificationSessionRepository(db *gorm.DB) *GormVerificationSessionRepository {
	return &GormVerificationSessionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVerificationSessionRepository) WithTx(tx *gorm.DB) *GormVerificationSessionRepository {
	if tx == nil {
		return r
	}
	return &GormVerificationSessionRepository{db: tx}
}

// Transaction 在事务中执行
func (r *GormVerificationSessionRepository) Transaction(fn func(repo *GormVerificationSessionRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Create 创建会话记录
func (r *GormVerificationSessionRepository) Create(session *models.VerificationSession) error {
	return r.db.Create(session).Error
}

// GetBySessionID 根据会话ID获取记录
func (r *GormVerificationSessionRepository) GetBySessionID(sessionID string) (*models.VerificationSession, error) {
	var session models.VerificationSession
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetLatestByPhone 获取手机号最新发送的会话（不含跳过记录）
func (r *GormVerificationSessionRepository) GetLatestByPhone(phoneNumber string) (*models.VerificationSession, error) {
	var session models.VerificationSession
	result := r.db.Where("phone_number = ? AND status <> ?", phoneNumber, models.VerificationStatusSkipped).
		Order("sent_at desc, id desc").
		Limit(1).
		Find(&session)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &session, nil
}

// CountSentSince 统计窗口内实际发送的短信数量
func (r *GormVerificationSessionRepository) CountSentSince(phoneNumber string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.VerificationSession{}).
		Where("phone_number = ? AND sent_at > ? AND status <> ?", phoneNumber, since, models.VerificationStatusSkipped).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// InvalidatePending 作废手机号所有待验证会话
func (r *GormVerificationSessionRepository) InvalidatePending(phoneNumber string) (int64, error) {
	result := r.db.Model(&models.VerificationSession{}).
		Where("phone_number = ? AND status = ?", phoneNumber, models.VerificationStatusPending).
		Update("status", models.VerificationStatusInvalidated)
	return result.RowsAffected, result.Error
}

// IncrementAttempt 增加验证次数
func (r *GormVerificationSessionRepository) IncrementAttempt(id uint) error {
	return r.db.Model(&models.VerificationSession{}).
		Where("id = ?", id).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + 1")).Error
}

// MarkVerified 原子地将待验证会话标记为已验证，返回是否由本次调用完成
func (r *GormVerificationSessionRepository) MarkVerified(id uint, verifiedAt time.Time) (bool, error) {
	result := r.db.Model(&models.VerificationSession{}).
		Where("id = ? AND status = ?", id, models.VerificationStatusPending).
		Updates(map[string]interface{}{
			"status":      models.VerificationStatusVerified,
			"verified_at": verifiedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkExpired 标记会话过期
func (r *GormVerificationSessionRepository) MarkExpired(id uint) error {
	return r.db.Model(&models.VerificationSession{}).
		Where("id = ? AND status = ?", id, models.VerificationStatusPending).
		Update("status", models.VerificationStatusExpired).Error
}

// ListAdmin 管理端查询验证会话
func (r *GormVerificationSessionRepository) ListAdmin(filter VerificationSessionListFilter) ([]models.VerificationSession, int64, error) {
	query := r.db.Model(&models.VerificationSession{})
	if filter.PhoneNumber != "" {
		query = query.Where("phone_number "+likeOperatorByDialect(dbDialectName(r.db))+" ?", filter.PhoneNumber+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Purpose != "" {
		query = query.Where("purpose = ?", filter.Purpose)
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

	var sessions []models.VerificationSession
	if err := query.Order("id desc").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// DeleteCreatedBefore 删除保留期之前的会话
func (r *GormVerificationSessionRepository) DeleteCreatedBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.VerificationSession{})
	return result.RowsAffected, result.Error
}
