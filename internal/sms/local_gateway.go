package sms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/keylock"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidRequest 网关请求参数无效
var ErrInvalidRequest = errors.New("invalid gateway request")

// Dispatcher 异步投递短信（如 asynq 队列）
type Dispatcher interface {
	DispatchSMS(ctx context.Context, msg Message) error
}

// 验证码位数范围，网关生成与协调器校验共用
const (
	MinCodeLength     = 4
	MaxCodeLength     = 10
	DefaultCodeLength = 6
)

// LocalGatewayOptions 自托管网关参数
type LocalGatewayOptions struct {
	Lifetime           time.Duration
	MaxAttempts        int
	Cooldown           time.Duration
	DailyLimit         int
	CodeLength         int
	PrimaryRegion      string
	SkipForeignNumbers bool
	Templates          map[string]string
}

// LocalGateway 自托管短信验证码网关
// 会话持久化在数据库，验证码仅保存 bcrypt 摘要
type LocalGateway struct {
	repo       repository.VerificationSessionRepository
	tokens     *TokenIssuer
	sender     Sender
	dispatcher Dispatcher
	opts       LocalGatewayOptions
	locks      *keylock.KeyedMutex
	now        func() time.Time
}

// NewLocalGateway 创建自托管网关
func NewLocalGateway(repo repository.VerificationSessionRepository, tokens *TokenIssuer, sender Sender, opts LocalGatewayOptions) *LocalGateway {
	if sender == nil {
		sender = LogSender{}
	}
	return &LocalGateway{
		repo:   repo,
		tokens: tokens,
		sender: sender,
		opts:   normalizeLocalOptions(opts),
		locks:  keylock.New(),
		now:    time.Now,
	}
}

// SetDispatcher 设置异步投递器，为空时同步投递
func (g *LocalGateway) SetDispatcher(dispatcher Dispatcher) {
	g.dispatcher = dispatcher
}

// SetClock 替换时钟（测试用）
func (g *LocalGateway) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	g.now = now
}

// Send 发送验证码
func (g *LocalGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	number, err := phone.Normalize(req.PhoneNumber, g.opts.PrimaryRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	purpose := strings.ToLower(strings.TrimSpace(req.Purpose))

	unlock := g.locks.Lock(number.E164)
	defer unlock()

	now := g.now()
	if g.opts.SkipForeignNumbers && !number.InRegion(g.opts.PrimaryRegion) {
		return g.skip(number, purpose, now)
	}

	latest, err := g.repo.GetLatestByPhone(number.E164)
	if err != nil {
		return nil, err
	}
	if latest != nil && !latest.SentAt.IsZero() {
		elapsed := now.Sub(latest.SentAt)
		if elapsed < g.opts.Cooldown {
			return &SendResult{
				Status:            SendStatusCooldown,
				RetryAfterSeconds: ceilSeconds(g.opts.Cooldown - elapsed),
			}, nil
		}
	}

	sent, err := g.repo.CountSentSince(number.E164, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if int(sent) >= g.opts.DailyLimit {
		logger.Infow("sms_gateway_daily_limit_reached", "phone", phone.Mask(number.E164), "sent", sent)
		return &SendResult{Status: SendStatusDailyLimitExceeded}, nil
	}

	code, err := randomNumericCode(g.opts.CodeLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	msg := Message{
		To:     number.E164,
		Body:   RenderMessage(g.opts.Templates, req.Locale, code),
		Locale: req.Locale,
	}
	if err := g.deliver(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	session := &models.VerificationSession{
		SessionID:   uuid.NewString(),
		PhoneNumber: number.E164,
		Purpose:     purpose,
		CodeHash:    string(hash),
		Status:      models.VerificationStatusPending,
		MaxAttempts: g.opts.MaxAttempts,
		ExpiresAt:   now.Add(g.opts.Lifetime),
		SentAt:      now,
		CreatedAt:   now,
	}
	if err := g.persist(session); err != nil {
		return nil, err
	}

	logger.Infow("sms_gateway_code_sent",
		"phone", phone.Mask(number.E164),
		"session_id", session.SessionID,
		"purpose", purpose,
		"resend", req.Resend,
		"previous_session_id", req.PreviousSessionID,
	)
	return &SendResult{
		Status:         SendStatusSent,
		SessionID:      session.SessionID,
		ExpiresAt:      session.ExpiresAt,
		DailyRemaining: g.opts.DailyLimit - int(sent) - 1,
	}, nil
}

// Verify 校验验证码
func (g *LocalGateway) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	code := strings.TrimSpace(req.Code)
	if sessionID == "" || code == "" {
		return nil, ErrInvalidRequest
	}
	session, err := g.repo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status == models.VerificationStatusSkipped {
		return &VerifyResult{Reason: VerifyReasonNotFound}, nil
	}
	if number, err := phone.Normalize(req.PhoneNumber, g.opts.PrimaryRegion); err != nil || number.E164 != session.PhoneNumber {
		return &VerifyResult{Reason: VerifyReasonNotFound}, nil
	}

	unlock := g.locks.Lock(session.PhoneNumber)
	defer unlock()

	// 加锁后重新读取，避免并发校验读到旧计数
	session, err = g.repo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &VerifyResult{Reason: VerifyReasonNotFound}, nil
	}

	switch session.Status {
	case models.VerificationStatusVerified:
		return &VerifyResult{Reason: VerifyReasonAlreadyVerified}, nil
	case models.VerificationStatusExpired, models.VerificationStatusInvalidated:
		return &VerifyResult{Reason: VerifyReasonExpired}, nil
	}

	now := g.now()
	if !now.Before(session.ExpiresAt) {
		if err := g.repo.MarkExpired(session.ID); err != nil {
			return nil, err
		}
		return &VerifyResult{Reason: VerifyReasonExpired}, nil
	}
	if session.AttemptsRemaining() <= 0 {
		if err := g.repo.MarkExpired(session.ID); err != nil {
			return nil, err
		}
		return &VerifyResult{Reason: VerifyReasonAttemptsExhausted}, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(session.CodeHash), []byte(code)) != nil {
		if err := g.repo.IncrementAttempt(session.ID); err != nil {
			return nil, err
		}
		remaining := session.AttemptsRemaining() - 1
		if remaining <= 0 {
			if err := g.repo.MarkExpired(session.ID); err != nil {
				return nil, err
			}
			return &VerifyResult{Reason: VerifyReasonAttemptsExhausted}, nil
		}
		return &VerifyResult{Reason: VerifyReasonIncorrect, AttemptsRemaining: remaining}, nil
	}

	consumed, err := g.repo.MarkVerified(session.ID, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return &VerifyResult{Reason: VerifyReasonAlreadyVerified}, nil
	}
	token, _, err := g.tokens.Issue(session.PhoneNumber, session.Purpose, session.SessionID, false)
	if err != nil {
		return nil, err
	}
	logger.Infow("sms_gateway_code_verified", "phone", phone.Mask(session.PhoneNumber), "session_id", session.SessionID)
	return &VerifyResult{Verified: true, Token: token, AttemptsRemaining: session.AttemptsRemaining()}, nil
}

// Deliver 由异步任务调用的直接投递
func (g *LocalGateway) Deliver(ctx context.Context, msg Message) error {
	return g.sender.Deliver(ctx, msg)
}

func (g *LocalGateway) skip(number phone.Number, purpose string, now time.Time) (*SendResult, error) {
	sessionID := uuid.NewString()
	token, _, err := g.tokens.Issue(number.E164, purpose, sessionID, true)
	if err != nil {
		return nil, err
	}
	record := &models.VerificationSession{
		SessionID:   sessionID,
		PhoneNumber: number.E164,
		Purpose:     purpose,
		CodeHash:    "-",
		Status:      models.VerificationStatusSkipped,
		ExpiresAt:   now,
		SentAt:      now,
		CreatedAt:   now,
	}
	if err := g.repo.Create(record); err != nil {
		logger.Warnw("sms_gateway_skip_record_failed", "phone", phone.Mask(number.E164), "error", err)
	}
	logger.Infow("sms_gateway_skipped_foreign_number", "phone", phone.Mask(number.E164), "region", number.Region)
	return &SendResult{
		Status:         SendStatusSkipped,
		SessionID:      sessionID,
		Token:          token,
		DailyRemaining: g.opts.DailyLimit,
	}, nil
}

func (g *LocalGateway) deliver(ctx context.Context, msg Message) error {
	if g.dispatcher != nil {
		return g.dispatcher.DispatchSMS(ctx, msg)
	}
	return g.sender.Deliver(ctx, msg)
}

func (g *LocalGateway) persist(session *models.VerificationSession) error {
	if txRepo, ok := g.repo.(*repository.GormVerificationSessionRepository); ok {
		return txRepo.Transaction(func(repo *repository.GormVerificationSessionRepository) error {
			if _, err := repo.InvalidatePending(session.PhoneNumber); err != nil {
				return err
			}
			return repo.Create(session)
		})
	}
	if _, err := g.repo.InvalidatePending(session.PhoneNumber); err != nil {
		return err
	}
	return g.repo.Create(session)
}

func normalizeLocalOptions(opts LocalGatewayOptions) LocalGatewayOptions {
	if opts.Lifetime <= 0 {
		opts.Lifetime = 10 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 60 * time.Second
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = 3
	}
	if opts.CodeLength < MinCodeLength || opts.CodeLength > MaxCodeLength {
		opts.CodeLength = DefaultCodeLength
	}
	if strings.TrimSpace(opts.PrimaryRegion) == "" {
		opts.PrimaryRegion = phone.DefaultRegion
	}
	return opts
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String(), nil
}
