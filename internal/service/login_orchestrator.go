package service

import (
	"context"
	"errors"
	"strings"

	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/phone"
)

// LoginOutcome 密码登录结果类型
type LoginOutcome string

const (
	LoginOutcomeAuthenticated        LoginOutcome = "authenticated"
	LoginOutcomeVerificationRequired LoginOutcome = "verification_required"
	LoginOutcomeVerificationBlocked  LoginOutcome = "verification_blocked"
	LoginOutcomeInvalidCredentials   LoginOutcome = "invalid_credentials"
	LoginOutcomeLocked               LoginOutcome = "locked"
	LoginOutcomeThrottled            LoginOutcome = "throttled"
	LoginOutcomeInvalidInput         LoginOutcome = "invalid_input"
	LoginOutcomeUnavailable          LoginOutcome = "unavailable"
)

// LoginInput 密码登录输入
type LoginInput struct {
	InstallationID string
	PhoneNumber    string
	Password       string
	Locale         string
	ClientIP       string
	UserAgent      string
	RequestID      string
}

// ResumeLoginInput 验证通过后续登输入
type ResumeLoginInput struct {
	InstallationID string
	Verification   VerifyCodeResult
	ClientIP       string
	UserAgent      string
	RequestID      string
}

// LoginResult 密码登录结果
type LoginResult struct {
	Outcome                  LoginOutcome       `json:"outcome"`
	PhoneNumber              string             `json:"phone_number,omitempty"`
	SessionToken             string             `json:"session_token,omitempty"`
	AccountID                string             `json:"account_id,omitempty"`
	RemainingAttempts        int                `json:"remaining_attempts,omitempty"`
	LockTimeRemainingSeconds int                `json:"lock_time_remaining_seconds,omitempty"`
	RetryAfterSeconds        int                `json:"retry_after_seconds,omitempty"`
	Verification             *RequestCodeResult `json:"verification,omitempty"`
	Err                      error              `json:"-"`
}

// LoginOrchestrator 串联登录保护、密码校验与手机号验证
type LoginOrchestrator struct {
	guard       *LoginAttemptGuard
	coordinator *OTPSessionCoordinator
	checker     CredentialChecker
	logs        *PhoneLoginLogService
	region      string
}

// NewLoginOrchestrator 创建登录编排服务
func NewLoginOrchestrator(guard *LoginAttemptGuard, coordinator *OTPSessionCoordinator, checker CredentialChecker, logs *PhoneLoginLogService) *LoginOrchestrator {
	region := phone.DefaultRegion
	if coordinator != nil {
		region = coordinator.Options().DefaultRegion
	}
	return &LoginOrchestrator{
		guard:       guard,
		coordinator: coordinator,
		checker:     checker,
		logs:        logs,
		region:      region,
	}
}

// Login 执行一次密码登录
// 锁定期间不会校验密码；密码正确但需要验证手机号时发起 login 验证流程并暂存加密凭据
func (o *LoginOrchestrator) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	meta := RecordPhoneLoginInput{
		PhoneNumber:    input.PhoneNumber,
		InstallationID: input.InstallationID,
		ClientIP:       input.ClientIP,
		UserAgent:      input.UserAgent,
		RequestID:      input.RequestID,
	}
	number, err := phone.Normalize(input.PhoneNumber, o.region)
	if err != nil {
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonInvalidPhone)
		return LoginResult{Outcome: LoginOutcomeInvalidInput, Err: ErrInvalidPhone}, nil
	}
	meta.PhoneNumber = number.E164
	if strings.TrimSpace(input.InstallationID) == "" {
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonBadRequest)
		return LoginResult{Outcome: LoginOutcomeInvalidInput, PhoneNumber: number.E164, Err: ErrInvalidInstallation}, nil
	}
	if input.Password == "" {
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonBadRequest)
		return LoginResult{Outcome: LoginOutcomeInvalidInput, PhoneNumber: number.E164, Err: ErrCredentialsMissing}, nil
	}

	if blocked, ok := o.precheck(ctx, number.E164, meta); ok {
		return blocked, nil
	}

	check, err := o.checker.CheckPassword(ctx, CredentialCheckInput{PhoneNumber: number.E164, Password: input.Password})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return LoginResult{Outcome: LoginOutcomeUnavailable, PhoneNumber: number.E164, Err: ctxErr}, ctxErr
		}
		logger.Warnw("login_backend_check_failed", "phone", phone.Mask(number.E164), "error", err)
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonBackendUnavailable)
		return LoginResult{Outcome: LoginOutcomeUnavailable, PhoneNumber: number.E164, Err: err}, nil
	}
	if check == nil || !check.Valid {
		return o.rejectCredentials(ctx, number.E164, meta), nil
	}
	o.recordAttempt(ctx, number.E164, true)

	if !check.RequiresVerification {
		o.record(meta, constants.LoginLogStatusSuccess, "")
		return LoginResult{
			Outcome:      LoginOutcomeAuthenticated,
			PhoneNumber:  number.E164,
			SessionToken: check.SessionToken,
			AccountID:    check.AccountID,
		}, nil
	}

	verification, err := o.coordinator.RequestCode(ctx, RequestCodeInput{
		InstallationID: input.InstallationID,
		PhoneNumber:    number.E164,
		Locale:         input.Locale,
		Reason:         constants.VerificationReasonLogin,
		Credentials:    &Credentials{Password: input.Password},
	})
	if err != nil {
		return LoginResult{Outcome: LoginOutcomeUnavailable, PhoneNumber: number.E164, Err: err}, err
	}
	switch verification.Outcome {
	case OTPOutcomeSent:
		o.record(meta, constants.LoginLogStatusVerificationRequired, "")
		return LoginResult{Outcome: LoginOutcomeVerificationRequired, PhoneNumber: number.E164, Verification: &verification}, nil
	case OTPOutcomeSkipped:
		o.record(meta, constants.LoginLogStatusSuccess, "")
		return LoginResult{
			Outcome:      LoginOutcomeAuthenticated,
			PhoneNumber:  number.E164,
			SessionToken: check.SessionToken,
			AccountID:    check.AccountID,
		}, nil
	default:
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonVerificationFailed)
		return LoginResult{
			Outcome:           LoginOutcomeVerificationBlocked,
			PhoneNumber:       number.E164,
			RetryAfterSeconds: verification.RetryAfterSeconds,
			Verification:      &verification,
			Err:               verification.Err,
		}, nil
	}
}

// ResumeLogin 手机号验证通过后使用暂存凭据重新登录
func (o *LoginOrchestrator) ResumeLogin(ctx context.Context, input ResumeLoginInput) (LoginResult, error) {
	verification := input.Verification
	meta := RecordPhoneLoginInput{
		PhoneNumber:    verification.PhoneNumber,
		InstallationID: input.InstallationID,
		ClientIP:       input.ClientIP,
		UserAgent:      input.UserAgent,
		RequestID:      input.RequestID,
	}
	if verification.Outcome != OTPOutcomeVerified || verification.Reason() != constants.VerificationReasonLogin {
		return LoginResult{Outcome: LoginOutcomeInvalidInput, PhoneNumber: verification.PhoneNumber, Err: ErrInvalidReason}, nil
	}
	if verification.Credentials == nil || verification.Credentials.Password == "" {
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonBadRequest)
		return LoginResult{Outcome: LoginOutcomeInvalidInput, PhoneNumber: verification.PhoneNumber, Err: ErrCredentialsMissing}, nil
	}
	number := verification.PhoneNumber

	lock := o.guard.IsAccountLocked(ctx, number)
	if lock.Locked {
		o.record(meta, constants.LoginLogStatusLocked, constants.LoginLogFailReasonAccountLocked)
		return LoginResult{Outcome: LoginOutcomeLocked, PhoneNumber: number, LockTimeRemainingSeconds: lock.RemainingTimeSeconds}, nil
	}

	check, err := o.checker.CheckPassword(ctx, CredentialCheckInput{
		PhoneNumber:       number,
		Password:          verification.Credentials.Password,
		VerificationToken: verification.Token,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return LoginResult{Outcome: LoginOutcomeUnavailable, PhoneNumber: number, Err: ctxErr}, ctxErr
		}
		logger.Warnw("login_resume_backend_check_failed", "phone", phone.Mask(number), "error", err)
		o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonBackendUnavailable)
		return LoginResult{Outcome: LoginOutcomeUnavailable, PhoneNumber: number, Err: err}, nil
	}
	if check == nil || !check.Valid {
		return o.rejectCredentials(ctx, number, meta), nil
	}
	o.recordAttempt(ctx, number, true)
	o.record(meta, constants.LoginLogStatusSuccess, "")
	return LoginResult{
		Outcome:      LoginOutcomeAuthenticated,
		PhoneNumber:  number,
		SessionToken: check.SessionToken,
		AccountID:    check.AccountID,
	}, nil
}

func (o *LoginOrchestrator) precheck(ctx context.Context, number string, meta RecordPhoneLoginInput) (LoginResult, bool) {
	if lock := o.guard.IsAccountLocked(ctx, number); lock.Locked {
		o.record(meta, constants.LoginLogStatusLocked, constants.LoginLogFailReasonAccountLocked)
		return LoginResult{
			Outcome:                  LoginOutcomeLocked,
			PhoneNumber:              number,
			LockTimeRemainingSeconds: lock.RemainingTimeSeconds,
		}, true
	}
	if delay := o.guard.ShouldDelayLogin(ctx, number); delay.Delay {
		o.record(meta, constants.LoginLogStatusThrottled, constants.LoginLogFailReasonTooFrequent)
		return LoginResult{
			Outcome:           LoginOutcomeThrottled,
			PhoneNumber:       number,
			RetryAfterSeconds: delay.Seconds,
		}, true
	}
	return LoginResult{}, false
}

func (o *LoginOrchestrator) rejectCredentials(ctx context.Context, number string, meta RecordPhoneLoginInput) LoginResult {
	o.recordAttempt(ctx, number, false)
	o.record(meta, constants.LoginLogStatusFailed, constants.LoginLogFailReasonInvalidCredentials)
	status := o.guard.GetStatus(ctx, number)
	if status.Locked {
		return LoginResult{
			Outcome:                  LoginOutcomeLocked,
			PhoneNumber:              number,
			LockTimeRemainingSeconds: status.LockTimeRemainingSeconds,
		}
	}
	return LoginResult{
		Outcome:           LoginOutcomeInvalidCredentials,
		PhoneNumber:       number,
		RemainingAttempts: status.RemainingAttempts,
	}
}

func (o *LoginOrchestrator) recordAttempt(ctx context.Context, number string, success bool) {
	if err := o.guard.RecordAttempt(ctx, number, success); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnw("login_guard_record_failed", "phone", phone.Mask(number), "success", success, "error", err)
	}
}

func (o *LoginOrchestrator) record(meta RecordPhoneLoginInput, status, failReason string) {
	if o.logs == nil {
		return
	}
	meta.Status = status
	meta.FailReason = failReason
	if err := o.logs.Record(meta); err != nil {
		logger.Warnw("phone_login_log_record_failed", "phone", phone.Mask(meta.PhoneNumber), "status", status, "error", err)
	}
}
