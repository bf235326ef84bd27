package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/keylock"
	"github.com/panierscan/authcore/internal/kvstore"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
	"github.com/panierscan/authcore/internal/phone"
)

const loginAttemptKeyPrefix = "login_attempt:"

// LoginGuardOptions 登录防爆破参数
type LoginGuardOptions struct {
	FailureThreshold  int
	LockoutDuration   time.Duration
	EscalationFactor  float64
	MaxLockout        time.Duration
	MinAttemptSpacing time.Duration
	RecordTTL         time.Duration
	DefaultRegion     string
}

// LoginGuardOptionsFromConfig 从配置构建登录防爆破参数
func LoginGuardOptionsFromConfig(cfg config.LoginGuardConfig, region string) LoginGuardOptions {
	return LoginGuardOptions{
		FailureThreshold:  cfg.FailureThreshold,
		LockoutDuration:   time.Duration(cfg.LockoutSeconds) * time.Second,
		EscalationFactor:  cfg.EscalationFactor,
		MaxLockout:        time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		MinAttemptSpacing: time.Duration(cfg.MinAttemptSpacingSeconds) * time.Second,
		RecordTTL:         time.Duration(cfg.RecordTTLHours) * time.Hour,
		DefaultRegion:     region,
	}
}

// LoginAttemptRecord 单个手机号的登录失败记录
type LoginAttemptRecord struct {
	FailureCount  int        `json:"failure_count"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	LockoutCount  int        `json:"lockout_count"`
}

// LoginGuardStatus 登录保护状态
type LoginGuardStatus struct {
	Locked                   bool `json:"locked"`
	RemainingAttempts        int  `json:"remaining_attempts"`
	LockTimeRemainingSeconds int  `json:"lock_time_remaining_seconds"`
}

// LockState 锁定状态
type LockState struct {
	Locked               bool `json:"locked"`
	RemainingTimeSeconds int  `json:"remaining_time_seconds"`
}

// DelayDecision 软节流判断
type DelayDecision struct {
	Delay   bool `json:"delay"`
	Seconds int  `json:"seconds"`
}

// LoginAttemptGuard 按手机号统计登录失败并执行递增锁定
// 读取失败时放行（fail-open），写入失败返回错误由调用方决定是否忽略
type LoginAttemptGuard struct {
	store kvstore.Store
	locks *keylock.KeyedMutex
	opts  LoginGuardOptions
	now   func() time.Time
}

// NewLoginAttemptGuard 创建登录防爆破守卫
func NewLoginAttemptGuard(store kvstore.Store, opts LoginGuardOptions) *LoginAttemptGuard {
	return &LoginAttemptGuard{
		store: store,
		locks: keylock.New(),
		opts:  normalizeLoginGuardOptions(opts),
		now:   time.Now,
	}
}

// SetClock 替换时钟（测试用）
func (g *LoginAttemptGuard) SetClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Options 返回生效参数
func (g *LoginAttemptGuard) Options() LoginGuardOptions {
	return g.opts
}

// GetStatus 查询登录保护状态（只读）
func (g *LoginAttemptGuard) GetStatus(ctx context.Context, phoneNumber string) LoginGuardStatus {
	record, err := g.read(ctx, phoneNumber)
	if err != nil {
		g.failOpen("get_status", phoneNumber, err)
		return LoginGuardStatus{RemainingAttempts: g.opts.FailureThreshold}
	}
	now := g.now()
	record = g.effective(record, now)
	status := LoginGuardStatus{
		RemainingAttempts: g.opts.FailureThreshold - record.FailureCount,
	}
	if status.RemainingAttempts < 0 {
		status.RemainingAttempts = 0
	}
	if record.LockedUntil != nil {
		status.Locked = true
		status.RemainingAttempts = 0
		status.LockTimeRemainingSeconds = ceilSeconds(record.LockedUntil.Sub(now))
	}
	return status
}

// IsAccountLocked 判断手机号是否处于锁定期
func (g *LoginAttemptGuard) IsAccountLocked(ctx context.Context, phoneNumber string) LockState {
	record, err := g.read(ctx, phoneNumber)
	if err != nil {
		g.failOpen("is_locked", phoneNumber, err)
		return LockState{}
	}
	now := g.now()
	record = g.effective(record, now)
	if record.LockedUntil == nil {
		return LockState{}
	}
	return LockState{Locked: true, RemainingTimeSeconds: ceilSeconds(record.LockedUntil.Sub(now))}
}

// ShouldDelayLogin 两次尝试间隔过短时建议等待，与锁定状态无关
func (g *LoginAttemptGuard) ShouldDelayLogin(ctx context.Context, phoneNumber string) DelayDecision {
	if g.opts.MinAttemptSpacing <= 0 {
		return DelayDecision{}
	}
	record, err := g.read(ctx, phoneNumber)
	if err != nil {
		g.failOpen("should_delay", phoneNumber, err)
		return DelayDecision{}
	}
	if record.LastAttemptAt.IsZero() {
		return DelayDecision{}
	}
	elapsed := g.now().Sub(record.LastAttemptAt)
	if elapsed < 0 || elapsed >= g.opts.MinAttemptSpacing {
		return DelayDecision{}
	}
	return DelayDecision{Delay: true, Seconds: ceilSeconds(g.opts.MinAttemptSpacing - elapsed)}
}

// RecordAttempt 记录一次登录结果；成功清空记录，失败累加并在达到阈值时锁定
func (g *LoginAttemptGuard) RecordAttempt(ctx context.Context, phoneNumber string, success bool) error {
	key := g.key(phoneNumber)
	if key == "" {
		return ErrInvalidPhone
	}
	unlock := g.locks.Lock(key)
	defer unlock()

	if success {
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		if err := g.store.Remove(ctx, key); err != nil {
			metrics.LoginGuardStoreFailuresTotal.WithLabelValues("record_attempt").Inc()
			return fmt.Errorf("reset login attempts: %w", err)
		}
		return nil
	}
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()

	record, err := g.readKey(ctx, key)
	if err != nil {
		metrics.LoginGuardStoreFailuresTotal.WithLabelValues("record_attempt").Inc()
		return fmt.Errorf("load login attempts: %w", err)
	}
	now := g.now()
	record = g.effective(record, now)
	record.LastAttemptAt = now
	if record.LockedUntil == nil {
		record.FailureCount++
		if record.FailureCount >= g.opts.FailureThreshold {
			record.LockoutCount++
			lockedUntil := now.Add(g.lockoutDuration(record.LockoutCount))
			record.LockedUntil = &lockedUntil
			metrics.LoginLockoutsTotal.Inc()
			logger.Warnw("login_guard_locked",
				"phone", phone.Mask(phoneNumber),
				"failure_count", record.FailureCount,
				"lockout_count", record.LockoutCount,
				"locked_until", lockedUntil,
			)
		}
	}
	if err := g.write(ctx, key, record, now); err != nil {
		metrics.LoginGuardStoreFailuresTotal.WithLabelValues("record_attempt").Inc()
		return fmt.Errorf("save login attempts: %w", err)
	}
	return nil
}

// Inspect 读取原始记录（管理端使用），不存在时返回 nil
func (g *LoginAttemptGuard) Inspect(ctx context.Context, phoneNumber string) (*LoginAttemptRecord, error) {
	key := g.key(phoneNumber)
	if key == "" {
		return nil, ErrInvalidPhone
	}
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var record LoginAttemptRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode login attempts: %w", err)
	}
	return &record, nil
}

// Reset 清除手机号的失败记录与锁定（管理端解锁）
func (g *LoginAttemptGuard) Reset(ctx context.Context, phoneNumber string) error {
	key := g.key(phoneNumber)
	if key == "" {
		return ErrInvalidPhone
	}
	unlock := g.locks.Lock(key)
	defer unlock()
	return g.store.Remove(ctx, key)
}

// lockoutDuration 第 n 次锁定时长 = 基础时长 × factor^(n-1)，不超过上限
func (g *LoginAttemptGuard) lockoutDuration(lockoutCount int) time.Duration {
	base := g.opts.LockoutDuration
	if lockoutCount <= 1 || g.opts.EscalationFactor <= 1 {
		return base
	}
	scaled := float64(base) * math.Pow(g.opts.EscalationFactor, float64(lockoutCount-1))
	if g.opts.MaxLockout > 0 && scaled >= float64(g.opts.MaxLockout) {
		return g.opts.MaxLockout
	}
	return time.Duration(scaled)
}

// effective 锁定到期后失败计数归零，锁定次数保留用于递增
func (g *LoginAttemptGuard) effective(record LoginAttemptRecord, now time.Time) LoginAttemptRecord {
	if record.LockedUntil != nil && !now.Before(*record.LockedUntil) {
		record.LockedUntil = nil
		record.FailureCount = 0
	}
	return record
}

func (g *LoginAttemptGuard) read(ctx context.Context, phoneNumber string) (LoginAttemptRecord, error) {
	key := g.key(phoneNumber)
	if key == "" {
		return LoginAttemptRecord{}, nil
	}
	return g.readKey(ctx, key)
}

func (g *LoginAttemptGuard) readKey(ctx context.Context, key string) (LoginAttemptRecord, error) {
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return LoginAttemptRecord{}, err
	}
	if !ok {
		return LoginAttemptRecord{}, nil
	}
	var record LoginAttemptRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		logger.Warnw("login_guard_record_corrupt", "key", key, "error", err)
		return LoginAttemptRecord{}, nil
	}
	return record, nil
}

func (g *LoginAttemptGuard) write(ctx context.Context, key string, record LoginAttemptRecord, now time.Time) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := g.opts.RecordTTL
	if record.LockedUntil != nil {
		if untilLock := record.LockedUntil.Sub(now); untilLock > ttl {
			ttl = untilLock
		}
	}
	return g.store.Set(ctx, key, raw, ttl)
}

func (g *LoginAttemptGuard) key(phoneNumber string) string {
	if number, err := phone.Normalize(phoneNumber, g.opts.DefaultRegion); err == nil {
		return loginAttemptKeyPrefix + number.E164
	}
	cleaned := phone.Clean(phoneNumber)
	if cleaned == "" {
		return ""
	}
	return loginAttemptKeyPrefix + cleaned
}

func (g *LoginAttemptGuard) failOpen(operation, phoneNumber string, err error) {
	metrics.LoginGuardStoreFailuresTotal.WithLabelValues(operation).Inc()
	logger.Warnw("login_guard_store_unavailable", "operation", operation, "phone", phone.Mask(phoneNumber), "error", err)
}

func normalizeLoginGuardOptions(opts LoginGuardOptions) LoginGuardOptions {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 15 * time.Minute
	}
	if opts.EscalationFactor <= 0 {
		opts.EscalationFactor = 2
	}
	if opts.MaxLockout <= 0 {
		opts.MaxLockout = 24 * time.Hour
	}
	if opts.MaxLockout < opts.LockoutDuration {
		opts.MaxLockout = opts.LockoutDuration
	}
	if opts.MinAttemptSpacing < 0 {
		opts.MinAttemptSpacing = 0
	}
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = 24 * time.Hour
	}
	if strings.TrimSpace(opts.DefaultRegion) == "" {
		opts.DefaultRegion = phone.DefaultRegion
	}
	return opts
}

// FormatRemainingTime 格式化剩余时间："1 h 05 min" / "4 min 10 s" / "35 s"（fr），"1h 05m" / "4m 10s" / "35s"（en）
func FormatRemainingTime(seconds int, locale string) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	english := strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en")
	switch {
	case hours > 0 && english:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d h %02d min", hours, minutes)
	case minutes > 0 && english:
		return fmt.Sprintf("%dm %02ds", minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%d min %02d s", minutes, secs)
	case english:
		return fmt.Sprintf("%ds", secs)
	default:
		return fmt.Sprintf("%d s", secs)
	}
}
