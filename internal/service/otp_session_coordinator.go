package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/keylock"
	"github.com/panierscan/authcore/internal/kvstore"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/sms"

	"github.com/google/uuid"
)

const (
	otpSessionKeyPrefix = "otp:session:"
	otpLatestKeyPrefix  = "otp:latest:"
	otpPendingKeyPrefix = "otp:pending:"
	otpSendsKeyPrefix   = "otp:sends:"

	otpDailyWindow       = 24 * time.Hour
	otpLedgerGrace       = 24 * time.Hour
	otpMinSendTimeout    = 5 * time.Second
	otpMaxSendTimeout    = 10 * time.Second
	otpDefaultSendTO     = 8 * time.Second
	otpDefaultVerifyTO   = 30 * time.Second
	otpDefaultLocale     = "fr"
	syntheticSessionHead = "test-"
)

// ErrNoSessionToResend 没有可重发的会话
var ErrNoSessionToResend = errors.New("no verification session to resend")

// OTPCoordinatorOptions 验证码协调器参数
type OTPCoordinatorOptions struct {
	Lifetime          time.Duration
	MaxAttempts       int
	ResendCooldown    time.Duration
	DailyLimit        int
	SendTimeout       time.Duration
	VerifyTimeout     time.Duration
	DefaultRegion     string
	DefaultLocale     string
	TestNumberPattern string
	TestNumberCode    string
}

// OTPCoordinatorOptionsFromConfig 从配置构建协调器参数
func OTPCoordinatorOptionsFromConfig(cfg config.OTPConfig) OTPCoordinatorOptions {
	return OTPCoordinatorOptions{
		Lifetime:          time.Duration(cfg.LifetimeSeconds) * time.Second,
		MaxAttempts:       cfg.MaxAttempts,
		ResendCooldown:    time.Duration(cfg.ResendCooldownSeconds) * time.Second,
		DailyLimit:        cfg.DailyLimit,
		SendTimeout:       time.Duration(cfg.SendTimeoutSeconds) * time.Second,
		VerifyTimeout:     time.Duration(cfg.VerifyTimeoutSeconds) * time.Second,
		DefaultRegion:     cfg.PrimaryRegion,
		TestNumberPattern: cfg.TestNumbers.Pattern,
		TestNumberCode:    cfg.TestNumbers.Code,
	}
}

// OTPSessionCoordinator 验证码会话协调器
// 负责会话生命周期、重发冷却、每日配额、过期判断，以及通过键值存储实现的崩溃恢复
type OTPSessionCoordinator struct {
	gateway     sms.Gateway
	store       kvstore.Store
	sealer      *Sealer
	tokens      *sms.TokenIssuer
	locks       *keylock.KeyedMutex
	opts        OTPCoordinatorOptions
	testNumbers *regexp.Regexp
	now         func() time.Time
}

// NewOTPSessionCoordinator 创建验证码协调器
func NewOTPSessionCoordinator(gateway sms.Gateway, store kvstore.Store, sealer *Sealer, opts OTPCoordinatorOptions) (*OTPSessionCoordinator, error) {
	if gateway == nil {
		return nil, errors.New("sms gateway is nil")
	}
	if store == nil {
		return nil, errors.New("kv store is nil")
	}
	opts = normalizeCoordinatorOptions(opts)
	var testNumbers *regexp.Regexp
	if pattern := strings.TrimSpace(opts.TestNumberPattern); pattern != "" {
		if strings.TrimSpace(opts.TestNumberCode) == "" {
			return nil, errors.New("otp test number code required when pattern is set")
		}
		compiled, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("otp test number pattern invalid: %w", err)
		}
		testNumbers = compiled
	}
	return &OTPSessionCoordinator{
		gateway:     gateway,
		store:       store,
		sealer:      sealer,
		locks:       keylock.New(),
		opts:        opts,
		testNumbers: testNumbers,
		now:         time.Now,
	}, nil
}

// SetTokenIssuer 设置测试号码使用的验证令牌签发器
func (c *OTPSessionCoordinator) SetTokenIssuer(tokens *sms.TokenIssuer) {
	c.tokens = tokens
}

// SetClock 替换时钟（测试用）
func (c *OTPSessionCoordinator) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Options 返回生效参数
func (c *OTPSessionCoordinator) Options() OTPCoordinatorOptions {
	return c.opts
}

// RequestCode 为手机号请求新的验证码
func (c *OTPSessionCoordinator) RequestCode(ctx context.Context, input RequestCodeInput) (RequestCodeResult, error) {
	result, err := c.requestCode(ctx, input)
	c.observe("request", result.Outcome, err)
	return result, err
}

func (c *OTPSessionCoordinator) requestCode(ctx context.Context, input RequestCodeInput) (RequestCodeResult, error) {
	installationID := strings.TrimSpace(input.InstallationID)
	if installationID == "" {
		return RequestCodeResult{Outcome: OTPOutcomeInvalidInput, Err: ErrInvalidInstallation}, nil
	}
	reason := strings.TrimSpace(input.Reason)
	if !IsValidVerificationReason(reason) {
		return RequestCodeResult{Outcome: OTPOutcomeInvalidInput, Err: ErrInvalidReason}, nil
	}
	number, synthetic, err := c.resolveNumber(input.PhoneNumber)
	if err != nil {
		return RequestCodeResult{Outcome: OTPOutcomeInvalidInput, Err: err}, nil
	}
	locale := c.normalizeLocale(input.Locale)

	var sealed string
	if reason == constants.VerificationReasonLogin && input.Credentials != nil && c.sealer != nil {
		payload, err := json.Marshal(input.Credentials)
		if err != nil {
			return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
		}
		sealed, err = c.sealer.Seal(payload, installationID)
		if err != nil {
			logger.Warnw("otp_seal_credentials_failed", "phone", phone.Mask(number), "error", err)
			return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
		}
	}

	unlock := c.locks.Lock(number)
	defer unlock()

	now := c.now()
	sends := c.loadSends(ctx, number, now)
	if retryAfter, limited := c.dailyLimited(sends, now); limited {
		return RequestCodeResult{
			Outcome:           OTPOutcomeDailyLimitExceeded,
			PhoneNumber:       number,
			RetryAfterSeconds: retryAfter,
		}, nil
	}

	previous, err := c.loadLatest(ctx, number)
	if err != nil {
		logger.Warnw("otp_load_latest_session_failed", "phone", phone.Mask(number), "error", err)
	}
	previousID := ""
	if previous != nil && previous.Status == SessionStatusPending {
		previousID = previous.SessionID
	}

	if synthetic {
		session := c.newSyntheticSession(number, reason, now)
		if err := c.commitSent(ctx, installationID, previous, session, locale, sealed, nil); err != nil {
			return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
		}
		logger.Infow("otp_synthetic_code_issued", "phone", phone.Mask(number), "session_id", session.SessionID, "reason", reason)
		return RequestCodeResult{
			Outcome:     OTPOutcomeSent,
			PhoneNumber: number,
			SessionID:   session.SessionID,
			ExpiresAt:   session.ExpiresAt,
		}, nil
	}

	res, left, err := callGateway(ctx, "send", c.opts.SendTimeout, func(callCtx context.Context) (*sms.SendResult, error) {
		return c.gateway.Send(callCtx, sms.SendRequest{
			PhoneNumber:       number,
			Purpose:           reason,
			Locale:            locale,
			PreviousSessionID: previousID,
		})
	})
	if left {
		return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, err
	}
	if err != nil || res == nil {
		logger.Warnw("otp_gateway_send_failed", "phone", phone.Mask(number), "reason", reason, "error", err)
		return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: gatewayErr(err)}, nil
	}

	switch res.Status {
	case sms.SendStatusSent:
		if strings.TrimSpace(res.SessionID) == "" {
			logger.Warnw("otp_gateway_send_missing_session", "phone", phone.Mask(number))
			return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: sms.ErrGatewayUnavailable}, nil
		}
		session := c.newSession(res, number, reason, now)
		if err := c.commitSent(ctx, installationID, previous, session, locale, sealed, sends); err != nil {
			return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
		}
		logger.Infow("otp_code_sent", "phone", phone.Mask(number), "session_id", session.SessionID, "reason", reason, "previous_session_id", previousID)
		return RequestCodeResult{
			Outcome:        OTPOutcomeSent,
			PhoneNumber:    number,
			SessionID:      session.SessionID,
			ExpiresAt:      session.ExpiresAt,
			DailyRemaining: res.DailyRemaining,
		}, nil
	case sms.SendStatusSkipped:
		logger.Infow("otp_verification_skipped", "phone", phone.Mask(number), "reason", reason)
		return RequestCodeResult{
			Outcome:     OTPOutcomeSkipped,
			PhoneNumber: number,
			Token:       res.Token,
		}, nil
	case sms.SendStatusDailyLimitExceeded:
		return RequestCodeResult{
			Outcome:           OTPOutcomeDailyLimitExceeded,
			PhoneNumber:       number,
			RetryAfterSeconds: res.RetryAfterSeconds,
		}, nil
	case sms.SendStatusCooldown:
		return RequestCodeResult{
			Outcome:           OTPOutcomeTransientFailure,
			PhoneNumber:       number,
			RetryAfterSeconds: res.RetryAfterSeconds,
		}, nil
	default:
		logger.Warnw("otp_gateway_send_unknown_status", "phone", phone.Mask(number), "status", res.Status)
		return RequestCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: sms.ErrGatewayUnavailable}, nil
	}
}

// VerifyCode 校验验证码
func (c *OTPSessionCoordinator) VerifyCode(ctx context.Context, input VerifyCodeInput) (VerifyCodeResult, error) {
	result, err := c.verifyCode(ctx, input)
	c.observe("verify", result.Outcome, err)
	return result, err
}

func (c *OTPSessionCoordinator) verifyCode(ctx context.Context, input VerifyCodeInput) (VerifyCodeResult, error) {
	installationID := strings.TrimSpace(input.InstallationID)
	if installationID == "" {
		return VerifyCodeResult{Outcome: OTPOutcomeInvalidInput, Err: ErrInvalidInstallation}, nil
	}
	sessionID := strings.TrimSpace(input.SessionID)
	code := strings.TrimSpace(input.Code)
	if sessionID == "" || !isNumericCode(code) {
		return VerifyCodeResult{Outcome: OTPOutcomeInvalidInput, Err: ErrInvalidCode}, nil
	}
	number, _, err := c.resolveNumber(input.PhoneNumber)
	if err != nil {
		return VerifyCodeResult{Outcome: OTPOutcomeInvalidInput, Err: err}, nil
	}

	unlock := c.locks.Lock(number)
	defer unlock()

	base := VerifyCodeResult{PhoneNumber: number, SessionID: sessionID}
	session, err := c.loadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrPendingContextCorrupt) {
			_ = c.store.Remove(ctx, otpSessionKeyPrefix+sessionID)
			return c.closeWith(ctx, installationID, base, nil, OTPOutcomeSessionExpired), nil
		}
		logger.Warnw("otp_load_session_failed", "session_id", sessionID, "error", err)
		base.Outcome = OTPOutcomeTransientFailure
		base.Err = err
		return base, nil
	}
	if session == nil || session.PhoneNumber != number {
		return c.closeWith(ctx, installationID, base, nil, OTPOutcomeSessionExpired), nil
	}

	switch session.Status {
	case SessionStatusConsumed, SessionStatusVerified:
		return c.closeWith(ctx, installationID, base, nil, OTPOutcomeAlreadyConsumed), nil
	case SessionStatusExpired, SessionStatusInvalidated:
		return c.closeWith(ctx, installationID, base, nil, OTPOutcomeSessionExpired), nil
	}

	now := c.now()
	if !now.Before(session.ExpiresAt) || session.AttemptsRemaining <= 0 {
		c.transition(ctx, session, SessionStatusExpired, now)
		return c.closeWith(ctx, installationID, base, session, OTPOutcomeSessionExpired), nil
	}

	if session.Synthetic {
		return c.verifySynthetic(ctx, installationID, base, session, code, now), nil
	}

	res, left, err := callGateway(ctx, "verify", c.opts.VerifyTimeout, func(callCtx context.Context) (*sms.VerifyResult, error) {
		return c.gateway.Verify(callCtx, sms.VerifyRequest{
			PhoneNumber: number,
			SessionID:   sessionID,
			Code:        code,
		})
	})
	if left {
		base.Outcome = OTPOutcomeTransientFailure
		base.Err = err
		return base, err
	}
	if err != nil || res == nil {
		logger.Warnw("otp_gateway_verify_failed", "phone", phone.Mask(number), "session_id", sessionID, "error", err)
		base.Outcome = OTPOutcomeTransientFailure
		base.Err = gatewayErr(err)
		return base, nil
	}

	now = c.now()
	if res.Verified {
		return c.completeVerified(ctx, installationID, base, session, res.Token, now), nil
	}
	switch res.Reason {
	case sms.VerifyReasonIncorrect:
		remaining := res.AttemptsRemaining
		if remaining <= 0 || remaining >= session.AttemptsRemaining {
			remaining = session.AttemptsRemaining - 1
		}
		return c.recordIncorrect(ctx, installationID, base, session, remaining, now), nil
	case sms.VerifyReasonAttemptsExhausted, sms.VerifyReasonExpired, sms.VerifyReasonNotFound:
		c.transition(ctx, session, SessionStatusExpired, now)
		return c.closeWith(ctx, installationID, base, session, OTPOutcomeSessionExpired), nil
	case sms.VerifyReasonAlreadyVerified:
		c.transition(ctx, session, SessionStatusConsumed, now)
		return c.closeWith(ctx, installationID, base, session, OTPOutcomeAlreadyConsumed), nil
	default:
		logger.Warnw("otp_gateway_verify_unknown_reason", "session_id", sessionID, "reason", res.Reason)
		base.Outcome = OTPOutcomeTransientFailure
		base.Err = sms.ErrGatewayUnavailable
		return base, nil
	}
}

// ResendCode 为当前会话重发验证码
func (c *OTPSessionCoordinator) ResendCode(ctx context.Context, input ResendCodeInput) (ResendCodeResult, error) {
	result, err := c.resendCode(ctx, input)
	c.observe("resend", result.Outcome, err)
	return result, err
}

func (c *OTPSessionCoordinator) resendCode(ctx context.Context, input ResendCodeInput) (ResendCodeResult, error) {
	installationID := strings.TrimSpace(input.InstallationID)
	if installationID == "" {
		return ResendCodeResult{Outcome: OTPOutcomeInvalidInput, Err: ErrInvalidInstallation}, nil
	}
	number, _, err := c.resolveNumber(input.PhoneNumber)
	if err != nil {
		return ResendCodeResult{Outcome: OTPOutcomeInvalidInput, Err: err}, nil
	}

	unlock := c.locks.Lock(number)
	defer unlock()

	previous, err := c.loadLatest(ctx, number)
	if err != nil {
		logger.Warnw("otp_load_latest_session_failed", "phone", phone.Mask(number), "error", err)
		return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
	}
	if previous == nil {
		return ResendCodeResult{Outcome: OTPOutcomeInvalidInput, PhoneNumber: number, Err: ErrNoSessionToResend}, nil
	}

	now := c.now()
	// 已结束的会话不能通过重发复活，需要重新 RequestCode
	if previous.Status != SessionStatusPending || !now.Before(previous.ExpiresAt) || previous.AttemptsRemaining <= 0 {
		if previous.Status == SessionStatusPending {
			c.transition(ctx, previous, SessionStatusExpired, now)
		}
		if pending := c.loadPendingRaw(ctx, installationID); pending != nil && pending.SessionID == previous.SessionID {
			c.removePending(ctx, installationID, "resend_closed_session")
		}
		logger.Debugw("otp_resend_closed_session", "phone", phone.Mask(number), "session_id", previous.SessionID, "status", previous.Status)
		return ResendCodeResult{Outcome: OTPOutcomeInvalidInput, PhoneNumber: number, SessionID: previous.SessionID, Err: ErrNoSessionToResend}, nil
	}
	if elapsed := now.Sub(previous.SentAt); elapsed < c.opts.ResendCooldown {
		return ResendCodeResult{
			Outcome:          OTPOutcomeCooldownActive,
			PhoneNumber:      number,
			SessionID:        previous.SessionID,
			SecondsRemaining: ceilSeconds(c.opts.ResendCooldown - elapsed),
		}, nil
	}
	sends := c.loadSends(ctx, number, now)
	if retryAfter, limited := c.dailyLimited(sends, now); limited {
		return ResendCodeResult{Outcome: OTPOutcomeDailyLimitExceeded, PhoneNumber: number, RetryAfterSeconds: retryAfter}, nil
	}

	pending := c.loadPendingRaw(ctx, installationID)
	if pending != nil && pending.SessionID != previous.SessionID {
		pending = nil
	}
	locale := c.opts.DefaultLocale
	sealed := ""
	if pending != nil {
		locale = pending.Locale
		sealed = pending.SealedCredentials
	}
	previousID := previous.SessionID

	var session *VerificationSession
	dailyRemaining := 0
	if previous.Synthetic {
		session = c.newSyntheticSession(number, previous.Reason, now)
	} else {
		res, left, err := callGateway(ctx, "resend", c.opts.SendTimeout, func(callCtx context.Context) (*sms.SendResult, error) {
			return c.gateway.Send(callCtx, sms.SendRequest{
				PhoneNumber:       number,
				Purpose:           previous.Reason,
				Locale:            locale,
				Resend:            true,
				PreviousSessionID: previousID,
			})
		})
		if left {
			return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, err
		}
		if err != nil || res == nil {
			logger.Warnw("otp_gateway_resend_failed", "phone", phone.Mask(number), "error", err)
			return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: gatewayErr(err)}, nil
		}
		switch res.Status {
		case sms.SendStatusSent:
			if strings.TrimSpace(res.SessionID) == "" {
				return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: sms.ErrGatewayUnavailable}, nil
			}
			session = c.newSession(res, number, previous.Reason, now)
			dailyRemaining = res.DailyRemaining
		case sms.SendStatusCooldown:
			return ResendCodeResult{
				Outcome:          OTPOutcomeCooldownActive,
				PhoneNumber:      number,
				SessionID:        previous.SessionID,
				SecondsRemaining: res.RetryAfterSeconds,
			}, nil
		case sms.SendStatusDailyLimitExceeded:
			return ResendCodeResult{Outcome: OTPOutcomeDailyLimitExceeded, PhoneNumber: number, RetryAfterSeconds: res.RetryAfterSeconds}, nil
		default:
			logger.Warnw("otp_gateway_resend_unexpected_status", "phone", phone.Mask(number), "status", res.Status)
			return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: sms.ErrGatewayUnavailable}, nil
		}
	}

	startedAt := now
	if pending != nil {
		startedAt = pending.StartedAt
	}
	if err := c.commitSentAt(ctx, installationID, previous, session, locale, sealed, sends, startedAt); err != nil {
		return ResendCodeResult{Outcome: OTPOutcomeTransientFailure, PhoneNumber: number, Err: err}, nil
	}
	logger.Infow("otp_code_resent", "phone", phone.Mask(number), "session_id", session.SessionID, "previous_session_id", previousID)
	return ResendCodeResult{
		Outcome:        OTPOutcomeSent,
		PhoneNumber:    number,
		SessionID:      session.SessionID,
		ExpiresAt:      session.ExpiresAt,
		DailyRemaining: dailyRemaining,
	}, nil
}

// LoadPendingContext 读取待续验证上下文
// 损坏或过期的条目会被删除；存储不可读时返回 nil
func (c *OTPSessionCoordinator) LoadPendingContext(ctx context.Context, installationID string) *PendingVerificationContext {
	installationID = strings.TrimSpace(installationID)
	if installationID == "" {
		return nil
	}
	pending := c.loadPendingRaw(ctx, installationID)
	if pending == nil {
		return nil
	}
	now := c.now()
	if !now.Before(pending.ExpiresAt) {
		c.removePending(ctx, installationID, "stale")
		return nil
	}
	session, err := c.loadSession(ctx, pending.SessionID)
	if err != nil && !errors.Is(err, ErrPendingContextCorrupt) {
		logger.Warnw("otp_pending_context_session_unreadable", "session_id", pending.SessionID, "error", err)
		return nil
	}
	if session == nil || session.Status != SessionStatusPending || session.PhoneNumber != pending.PhoneNumber {
		c.removePending(ctx, installationID, "session_closed")
		return nil
	}
	return pending
}

// ResendWaitSeconds 待续流程距离允许重发还需等待的秒数，0 表示可立即重发
func (c *OTPSessionCoordinator) ResendWaitSeconds(pending *PendingVerificationContext) int {
	if pending == nil {
		return 0
	}
	remaining := pending.SentAt.Add(c.opts.ResendCooldown).Sub(c.now())
	if remaining <= 0 {
		return 0
	}
	return ceilSeconds(remaining)
}

// AbandonPendingContext 放弃当前验证流程
func (c *OTPSessionCoordinator) AbandonPendingContext(ctx context.Context, installationID string) error {
	installationID = strings.TrimSpace(installationID)
	if installationID == "" {
		return ErrInvalidInstallation
	}
	if err := c.store.Remove(ctx, otpPendingKeyPrefix+installationID); err != nil {
		return err
	}
	logger.Debugw("otp_pending_context_abandoned", "installation_id", installationID)
	return nil
}

// OpenCredentials 解开待续上下文中的登录凭据
func (c *OTPSessionCoordinator) OpenCredentials(installationID string, pending *PendingVerificationContext) (*Credentials, error) {
	if !pending.HasCredentials() {
		return nil, ErrCredentialsMissing
	}
	if c.sealer == nil {
		return nil, ErrSealKeyInvalid
	}
	raw, err := c.sealer.Open(pending.SealedCredentials, strings.TrimSpace(installationID))
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedPayloadInvalid, err)
	}
	return &creds, nil
}

func (c *OTPSessionCoordinator) verifySynthetic(ctx context.Context, installationID string, base VerifyCodeResult, session *VerificationSession, code string, now time.Time) VerifyCodeResult {
	if subtle.ConstantTimeCompare([]byte(code), []byte(c.opts.TestNumberCode)) != 1 {
		return c.recordIncorrect(ctx, installationID, base, session, session.AttemptsRemaining-1, now)
	}
	token := ""
	if c.tokens != nil {
		issued, _, err := c.tokens.Issue(session.PhoneNumber, session.Reason, session.SessionID, false)
		if err != nil {
			logger.Warnw("otp_synthetic_token_issue_failed", "session_id", session.SessionID, "error", err)
		} else {
			token = issued
		}
	}
	return c.completeVerified(ctx, installationID, base, session, token, now)
}

func (c *OTPSessionCoordinator) recordIncorrect(ctx context.Context, installationID string, base VerifyCodeResult, session *VerificationSession, remaining int, now time.Time) VerifyCodeResult {
	if remaining <= 0 {
		session.AttemptsRemaining = 0
		c.transition(ctx, session, SessionStatusExpired, now)
		return c.closeWith(ctx, installationID, base, session, OTPOutcomeSessionExpired)
	}
	session.AttemptsRemaining = remaining
	if err := c.saveSession(ctx, session); err != nil {
		logger.Warnw("otp_save_session_failed", "session_id", session.SessionID, "error", err)
	}
	base.Outcome = OTPOutcomeIncorrectCode
	base.AttemptsRemaining = remaining
	return base
}

func (c *OTPSessionCoordinator) completeVerified(ctx context.Context, installationID string, base VerifyCodeResult, session *VerificationSession, token string, now time.Time) VerifyCodeResult {
	// verified 之后立即 consumed，同一会话不会第二次成功
	c.transition(ctx, session, SessionStatusConsumed, now)

	pending := c.loadPendingRaw(ctx, installationID)
	if pending != nil && pending.SessionID == session.SessionID {
		c.removePending(ctx, installationID, "verified")
	} else {
		pending = &PendingVerificationContext{
			PhoneNumber: session.PhoneNumber,
			SessionID:   session.SessionID,
			Reason:      session.Reason,
			Locale:      c.opts.DefaultLocale,
			StartedAt:   session.CreatedAt,
			SentAt:      session.SentAt,
			ExpiresAt:   session.ExpiresAt,
		}
	}
	base.Outcome = OTPOutcomeVerified
	base.Token = token
	base.Context = pending
	if pending.HasCredentials() {
		creds, err := c.OpenCredentials(installationID, pending)
		if err != nil {
			logger.Warnw("otp_open_credentials_failed", "session_id", session.SessionID, "error", err)
		} else {
			base.Credentials = creds
		}
	}
	logger.Infow("otp_code_verified", "phone", phone.Mask(session.PhoneNumber), "session_id", session.SessionID, "reason", session.Reason)
	return base
}

// closeWith 以终态结束，并在待续上下文指向该会话时清理它
func (c *OTPSessionCoordinator) closeWith(ctx context.Context, installationID string, base VerifyCodeResult, session *VerificationSession, outcome OTPOutcome) VerifyCodeResult {
	pending := c.loadPendingRaw(ctx, installationID)
	if pending != nil && pending.SessionID == base.SessionID {
		c.removePending(ctx, installationID, string(outcome))
	}
	base.Outcome = outcome
	if session != nil {
		base.AttemptsRemaining = session.AttemptsRemaining
	}
	return base
}

func (c *OTPSessionCoordinator) transition(ctx context.Context, session *VerificationSession, status SessionStatus, now time.Time) {
	if session == nil || session.Status == status {
		return
	}
	session.Status = status
	if status.Terminal() {
		closedAt := now
		session.ClosedAt = &closedAt
	}
	if err := c.saveSession(ctx, session); err != nil {
		logger.Warnw("otp_save_session_failed", "session_id", session.SessionID, "status", status, "error", err)
	}
}

// commitSent 持久化新会话、最新指针与待续上下文，全部成功后才视为发送成功
func (c *OTPSessionCoordinator) commitSent(ctx context.Context, installationID string, previous, session *VerificationSession, locale, sealed string, sends []time.Time) error {
	return c.commitSentAt(ctx, installationID, previous, session, locale, sealed, sends, session.CreatedAt)
}

func (c *OTPSessionCoordinator) commitSentAt(ctx context.Context, installationID string, previous, session *VerificationSession, locale, sealed string, sends []time.Time, startedAt time.Time) error {
	if previous != nil && previous.Status == SessionStatusPending && previous.SessionID != session.SessionID {
		c.transition(ctx, previous, SessionStatusInvalidated, session.SentAt)
	}
	if err := c.saveSession(ctx, session); err != nil {
		logger.Warnw("otp_persist_session_failed", "session_id", session.SessionID, "error", err)
		return err
	}
	if err := c.saveLatest(ctx, session); err != nil {
		logger.Warnw("otp_persist_latest_failed", "session_id", session.SessionID, "error", err)
		return err
	}
	pending := &PendingVerificationContext{
		PhoneNumber:       session.PhoneNumber,
		SessionID:         session.SessionID,
		Reason:            session.Reason,
		Locale:            locale,
		StartedAt:         startedAt,
		SentAt:            session.SentAt,
		ExpiresAt:         session.ExpiresAt,
		SealedCredentials: sealed,
	}
	if err := c.savePending(ctx, installationID, pending); err != nil {
		logger.Warnw("otp_persist_pending_context_failed", "session_id", session.SessionID, "error", err)
		return err
	}
	if !session.Synthetic {
		if err := c.saveSends(ctx, session.PhoneNumber, append(sends, session.SentAt)); err != nil {
			logger.Warnw("otp_persist_daily_sends_failed", "phone", phone.Mask(session.PhoneNumber), "error", err)
		}
	}
	return nil
}

func (c *OTPSessionCoordinator) newSession(res *sms.SendResult, number, reason string, now time.Time) *VerificationSession {
	expiresAt := res.ExpiresAt
	if expiresAt.IsZero() || expiresAt.After(now.Add(c.opts.Lifetime)) {
		expiresAt = now.Add(c.opts.Lifetime)
	}
	return &VerificationSession{
		SessionID:         strings.TrimSpace(res.SessionID),
		PhoneNumber:       number,
		Reason:            reason,
		Status:            SessionStatusPending,
		AttemptsRemaining: c.opts.MaxAttempts,
		CreatedAt:         now,
		SentAt:            now,
		ExpiresAt:         expiresAt,
	}
}

func (c *OTPSessionCoordinator) newSyntheticSession(number, reason string, now time.Time) *VerificationSession {
	return &VerificationSession{
		SessionID:         syntheticSessionHead + uuid.NewString(),
		PhoneNumber:       number,
		Reason:            reason,
		Status:            SessionStatusPending,
		AttemptsRemaining: c.opts.MaxAttempts,
		Synthetic:         true,
		CreatedAt:         now,
		SentAt:            now,
		ExpiresAt:         now.Add(c.opts.Lifetime),
	}
}

// resolveNumber 测试号码按清洗后的原串匹配，其余号码规范化为 E.164
func (c *OTPSessionCoordinator) resolveNumber(raw string) (string, bool, error) {
	cleaned := phone.Clean(raw)
	if cleaned == "" {
		return "", false, ErrInvalidPhone
	}
	if c.testNumbers != nil && c.testNumbers.MatchString(cleaned) {
		return cleaned, true, nil
	}
	number, err := phone.Normalize(cleaned, c.opts.DefaultRegion)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	return number.E164, false, nil
}

func (c *OTPSessionCoordinator) normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		locale = locale[:idx]
	}
	switch locale {
	case "fr", "en":
		return locale
	}
	return c.opts.DefaultLocale
}

func (c *OTPSessionCoordinator) dailyLimited(sends []time.Time, now time.Time) (int, bool) {
	if c.opts.DailyLimit <= 0 || len(sends) < c.opts.DailyLimit {
		return 0, false
	}
	oldest := sends[0]
	return ceilSeconds(oldest.Add(otpDailyWindow).Sub(now)), true
}

func (c *OTPSessionCoordinator) loadSends(ctx context.Context, number string, now time.Time) []time.Time {
	raw, ok, err := c.store.Get(ctx, otpSendsKeyPrefix+number)
	if err != nil {
		logger.Warnw("otp_load_daily_sends_failed", "phone", phone.Mask(number), "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var stored []time.Time
	if err := json.Unmarshal(raw, &stored); err != nil {
		_ = c.store.Remove(ctx, otpSendsKeyPrefix+number)
		return nil
	}
	cutoff := now.Add(-otpDailyWindow)
	sends := make([]time.Time, 0, len(stored))
	for _, sentAt := range stored {
		if sentAt.After(cutoff) {
			sends = append(sends, sentAt)
		}
	}
	return sends
}

func (c *OTPSessionCoordinator) saveSends(ctx context.Context, number string, sends []time.Time) error {
	raw, err := json.Marshal(sends)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, otpSendsKeyPrefix+number, raw, otpDailyWindow)
}

func (c *OTPSessionCoordinator) loadSession(ctx context.Context, sessionID string) (*VerificationSession, error) {
	raw, ok, err := c.store.Get(ctx, otpSessionKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var session VerificationSession
	if err := json.Unmarshal(raw, &session); err != nil || session.SessionID == "" {
		return nil, ErrPendingContextCorrupt
	}
	return &session, nil
}

func (c *OTPSessionCoordinator) saveSession(ctx context.Context, session *VerificationSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := c.opts.Lifetime + otpLedgerGrace
	return c.store.Set(ctx, otpSessionKeyPrefix+session.SessionID, raw, ttl)
}

func (c *OTPSessionCoordinator) loadLatest(ctx context.Context, number string) (*VerificationSession, error) {
	raw, ok, err := c.store.Get(ctx, otpLatestKeyPrefix+number)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	session, err := c.loadSession(ctx, string(raw))
	if errors.Is(err, ErrPendingContextCorrupt) {
		return nil, nil
	}
	return session, err
}

func (c *OTPSessionCoordinator) saveLatest(ctx context.Context, session *VerificationSession) error {
	return c.store.Set(ctx, otpLatestKeyPrefix+session.PhoneNumber, []byte(session.SessionID), c.opts.Lifetime+otpLedgerGrace)
}

func (c *OTPSessionCoordinator) loadPendingRaw(ctx context.Context, installationID string) *PendingVerificationContext {
	raw, ok, err := c.store.Get(ctx, otpPendingKeyPrefix+installationID)
	if err != nil {
		logger.Warnw("otp_load_pending_context_failed", "installation_id", installationID, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var pending PendingVerificationContext
	if err := json.Unmarshal(raw, &pending); err != nil || pending.SessionID == "" || pending.PhoneNumber == "" {
		c.removePending(ctx, installationID, "corrupt")
		return nil
	}
	return &pending
}

// savePending 每个安装实例仅一个槽位，新流程直接覆盖旧流程
func (c *OTPSessionCoordinator) savePending(ctx context.Context, installationID string, pending *PendingVerificationContext) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, otpPendingKeyPrefix+installationID, raw, c.opts.Lifetime)
}

func (c *OTPSessionCoordinator) removePending(ctx context.Context, installationID, cause string) {
	if err := c.store.Remove(ctx, otpPendingKeyPrefix+installationID); err != nil {
		logger.Warnw("otp_remove_pending_context_failed", "installation_id", installationID, "cause", cause, "error", err)
		return
	}
	logger.Debugw("otp_pending_context_removed", "installation_id", installationID, "cause", cause)
}

func (c *OTPSessionCoordinator) observe(operation string, outcome OTPOutcome, err error) {
	label := string(outcome)
	if err != nil {
		label = "caller_gone"
	}
	if label == "" {
		label = "unknown"
	}
	metrics.OTPOperationsTotal.WithLabelValues(operation, label).Inc()
}

func normalizeCoordinatorOptions(opts OTPCoordinatorOptions) OTPCoordinatorOptions {
	if opts.Lifetime <= 0 {
		opts.Lifetime = 10 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.ResendCooldown < 0 {
		opts.ResendCooldown = 0
	}
	if opts.ResendCooldown == 0 {
		opts.ResendCooldown = 60 * time.Second
	}
	if opts.DailyLimit == 0 {
		opts.DailyLimit = 3
	}
	switch {
	case opts.SendTimeout <= 0:
		opts.SendTimeout = otpDefaultSendTO
	case opts.SendTimeout < otpMinSendTimeout:
		opts.SendTimeout = otpMinSendTimeout
	case opts.SendTimeout > otpMaxSendTimeout:
		opts.SendTimeout = otpMaxSendTimeout
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = otpDefaultVerifyTO
	}
	if strings.TrimSpace(opts.DefaultRegion) == "" {
		opts.DefaultRegion = phone.DefaultRegion
	}
	opts.DefaultLocale = strings.ToLower(strings.TrimSpace(opts.DefaultLocale))
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = otpDefaultLocale
	}
	return opts
}

func isNumericCode(code string) bool {
	if len(code) < sms.MinCodeLength || len(code) > sms.MaxCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds
}

func gatewayErr(err error) error {
	if err == nil {
		return sms.ErrGatewayUnavailable
	}
	return err
}
