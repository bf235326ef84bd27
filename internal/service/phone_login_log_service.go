package service

import (
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/repository"
)

// PhoneLoginLogService 手机号登录日志服务
type PhoneLoginLogService struct {
	repo repository.PhoneLoginLogRepository
	now  func() time.Time
}

// NewPhoneLoginLogService 创建手机号登录日志服务
func NewPhoneLoginLogService(repo repository.PhoneLoginLogRepository) *PhoneLoginLogService {
	return &PhoneLoginLogService{repo: repo, now: time.Now}
}

// RecordPhoneLoginInput 登录日志记录输入
type RecordPhoneLoginInput struct {
	PhoneNumber    string
	Status         string
	FailReason     string
	InstallationID string
	ClientIP       string
	UserAgent      string
	RequestID      string
}

// Record 记录登录行为
func (s *PhoneLoginLogService) Record(input RecordPhoneLoginInput) error {
	if s == nil || s.repo == nil {
		return nil
	}

	number := normalizeLogPhone(input.PhoneNumber)

	status := strings.ToLower(strings.TrimSpace(input.Status))
	switch status {
	case constants.LoginLogStatusSuccess,
		constants.LoginLogStatusLocked,
		constants.LoginLogStatusThrottled,
		constants.LoginLogStatusVerificationRequired:
	default:
		status = constants.LoginLogStatusFailed
	}

	failReason := strings.ToLower(strings.TrimSpace(input.FailReason))
	if status == constants.LoginLogStatusSuccess || status == constants.LoginLogStatusVerificationRequired {
		failReason = ""
	} else if failReason == "" {
		failReason = constants.LoginLogFailReasonInternalError
	}

	return s.repo.Create(&models.PhoneLoginLog{
		PhoneNumber:    number,
		Status:         status,
		FailReason:     failReason,
		InstallationID: strings.TrimSpace(input.InstallationID),
		ClientIP:       strings.TrimSpace(input.ClientIP),
		UserAgent:      strings.TrimSpace(input.UserAgent),
		RequestID:      strings.TrimSpace(input.RequestID),
		CreatedAt:      s.now(),
	})
}

// ListForAdmin 管理端查询登录日志
func (s *PhoneLoginLogService) ListForAdmin(filter repository.PhoneLoginLogListFilter) ([]models.PhoneLoginLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.PhoneLoginLog{}, 0, nil
	}
	if filter.PhoneNumber != "" {
		filter.PhoneNumber = normalizeLogPhone(filter.PhoneNumber)
	}
	return s.repo.ListAdmin(filter)
}

func normalizeLogPhone(raw string) string {
	if normalized, err := phone.Normalize(raw, phone.DefaultRegion); err == nil {
		return normalized.E164
	}
	return phone.Clean(raw)
}
