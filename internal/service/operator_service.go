package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/cache"
	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/repository"
)

const operatorTouchInterval = time.Minute

// OperatorIdentity 已鉴权的操作员
type OperatorIdentity struct {
	ID    uint     `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// LoginGuardInspection 登录保护记录的后台视图
type LoginGuardInspection struct {
	PhoneNumber string              `json:"phone_number"`
	Status      LoginGuardStatus    `json:"status"`
	Record      *LoginAttemptRecord `json:"record,omitempty"`
}

// OperatorService 运营后台服务
type OperatorService struct {
	repo     repository.OperatorRepository
	audits   repository.OperatorAuditLogRepository
	sessions repository.VerificationSessionRepository
	guard    *LoginAttemptGuard
	region   string
	now      func() time.Time
}

// NewOperatorService 创建运营后台服务
func NewOperatorService(
	repo repository.OperatorRepository,
	audits repository.OperatorAuditLogRepository,
	sessions repository.VerificationSessionRepository,
	guard *LoginAttemptGuard,
) *OperatorService {
	region := phone.DefaultRegion
	if guard != nil {
		region = guard.Options().DefaultRegion
	}
	return &OperatorService{
		repo:     repo,
		audits:   audits,
		sessions: sessions,
		guard:    guard,
		region:   region,
		now:      time.Now,
	}
}

// Authenticate 使用 API Key 鉴权操作员，优先读取 Redis 快照
func (s *OperatorService) Authenticate(ctx context.Context, key string) (*OperatorIdentity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrOperatorKeyInvalid
	}
	keyHash := models.HashOperatorKey(key)

	state, hit, err := cache.GetOperatorAuthState(ctx, keyHash)
	if err != nil {
		logger.Debugw("operator_auth_cache_read_failed", "error", err)
	}
	if hit && state != nil {
		return &OperatorIdentity{ID: state.OperatorID, Name: state.Name, Roles: state.Roles}, nil
	}

	operator, err := s.repo.GetByKeyHash(keyHash)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrOperatorKeyInvalid
	}
	if err := cache.SetOperatorAuthState(ctx, keyHash, cache.BuildOperatorAuthState(operator)); err != nil {
		logger.Debugw("operator_auth_cache_write_failed", "operator_id", operator.ID, "error", err)
	}
	now := s.now()
	if operator.LastSeenAt == nil || now.Sub(*operator.LastSeenAt) >= operatorTouchInterval {
		if err := s.repo.TouchLastSeen(operator.ID, now); err != nil {
			logger.Warnw("operator_touch_last_seen_failed", "operator_id", operator.ID, "error", err)
		}
	}
	return &OperatorIdentity{ID: operator.ID, Name: operator.Name, Roles: []string(operator.Roles)}, nil
}

// ListOperators 获取操作员列表
func (s *OperatorService) ListOperators() ([]models.Operator, error) {
	return s.repo.List()
}

// InspectLoginGuard 查看手机号的登录保护状态
func (s *OperatorService) InspectLoginGuard(ctx context.Context, rawPhone string) (*LoginGuardInspection, error) {
	number, err := phone.Normalize(rawPhone, s.region)
	if err != nil {
		return nil, ErrInvalidPhone
	}
	record, err := s.guard.Inspect(ctx, number.E164)
	if err != nil {
		return nil, err
	}
	return &LoginGuardInspection{
		PhoneNumber: number.E164,
		Status:      s.guard.GetStatus(ctx, number.E164),
		Record:      record,
	}, nil
}

// UnlockLoginGuard 解除手机号锁定并写入审计日志
func (s *OperatorService) UnlockLoginGuard(ctx context.Context, operator *OperatorIdentity, rawPhone, requestID string) error {
	if operator == nil {
		return ErrOperatorNotFound
	}
	number, err := phone.Normalize(rawPhone, s.region)
	if err != nil {
		return ErrInvalidPhone
	}
	previous, err := s.guard.Inspect(ctx, number.E164)
	if err != nil {
		return err
	}
	if err := s.guard.Reset(ctx, number.E164); err != nil {
		return err
	}
	logger.Infow("login_guard_unlocked",
		"operator_id", operator.ID,
		"phone", phone.Mask(number.E164),
		"request_id", requestID,
	)
	if s.audits == nil {
		return nil
	}
	detail := models.JSON{}
	if previous != nil {
		detail["failure_count"] = previous.FailureCount
		detail["lockout_count"] = previous.LockoutCount
		if previous.LockedUntil != nil {
			detail["locked_until"] = previous.LockedUntil.UTC().Format(time.RFC3339)
		}
	}
	entry := &models.OperatorAuditLog{
		OperatorID:   operator.ID,
		OperatorName: operator.Name,
		Action:       constants.OperatorActionLoginGuardUnlock,
		Target:       number.E164,
		RequestID:    requestID,
		DetailJSON:   detail,
		CreatedAt:    s.now(),
	}
	if err := s.audits.Create(entry); err != nil {
		raw, _ := json.Marshal(detail)
		logger.Warnw("operator_audit_write_failed", "operator_id", operator.ID, "detail", string(raw), "error", err)
	}
	return nil
}

// ListVerificationSessions 后台查询网关验证会话
func (s *OperatorService) ListVerificationSessions(filter repository.VerificationSessionListFilter) ([]models.VerificationSession, int64, error) {
	if s.sessions == nil {
		return []models.VerificationSession{}, 0, nil
	}
	if strings.TrimSpace(filter.PhoneNumber) != "" {
		filter.PhoneNumber = normalizeLogPhone(filter.PhoneNumber)
	}
	return s.sessions.ListAdmin(filter)
}

// ListAuditLogs 后台查询操作员审计日志
func (s *OperatorService) ListAuditLogs(filter repository.OperatorAuditLogListFilter) ([]models.OperatorAuditLog, int64, error) {
	if s.audits == nil {
		return []models.OperatorAuditLog{}, 0, nil
	}
	return s.audits.ListAdmin(filter)
}
