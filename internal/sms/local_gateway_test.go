package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type captureSender struct {
	mu       sync.Mutex
	messages []Message
	fail     error
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		t.Fatalf("no sms captured")
	}
	body := s.messages[len(s.messages)-1].Body
	return strings.TrimPrefix(body, "Code: ")
}

type localGatewayFixture struct {
	gateway *LocalGateway
	sender  *captureSender
	tokens  *TokenIssuer
	now     time.Time
}

func setupLocalGateway(t *testing.T) *localGatewayFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.VerificationSession{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	fixture := &localGatewayFixture{
		sender: &captureSender{},
		tokens: NewTokenIssuer("test-secret", "authcore", 15*time.Minute),
		now:    time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	fixture.gateway = NewLocalGateway(
		repository.NewVerificationSessionRepository(db),
		fixture.tokens,
		fixture.sender,
		LocalGatewayOptions{SkipForeignNumbers: true},
	)
	fixture.gateway.SetClock(func() time.Time { return fixture.now })
	fixture.tokens.now = func() time.Time { return fixture.now }
	return fixture
}

const drcPhone = "+243812345678"

func TestLocalGatewaySendAndVerifyOnce(t *testing.T) {
	f := setupLocalGateway(t)
	ctx := context.Background()

	sent, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login", Locale: "fr"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sent.Status != SendStatusSent || sent.SessionID == "" {
		t.Fatalf("unexpected send result: %+v", sent)
	}
	if sent.DailyRemaining != 2 {
		t.Fatalf("daily remaining want 2 got %d", sent.DailyRemaining)
	}

	code := f.sender.lastCode(t)
	verified, err := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: code})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verified.Verified || verified.Token == "" {
		t.Fatalf("expected verified with token, got %+v", verified)
	}
	claims, err := f.tokens.Parse(verified.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.Phone != drcPhone || claims.SessionID != sent.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	again, err := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: code})
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}
	if again.Verified || again.Reason != VerifyReasonAlreadyVerified {
		t.Fatalf("expected already_verified, got %+v", again)
	}
}

func TestLocalGatewayCooldownAndDailyLimit(t *testing.T) {
	f := setupLocalGateway(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
		if err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
		if res.Status != SendStatusSent {
			t.Fatalf("send %d want sent got %s", i, res.Status)
		}
		cooldown, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login", Resend: true})
		if err != nil {
			t.Fatalf("cooldown send failed: %v", err)
		}
		if cooldown.Status != SendStatusCooldown || cooldown.RetryAfterSeconds != 60 {
			t.Fatalf("expected cooldown 60s, got %+v", cooldown)
		}
		f.now = f.now.Add(61 * time.Second)
	}

	fourth, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	if err != nil {
		t.Fatalf("fourth send failed: %v", err)
	}
	if fourth.Status != SendStatusDailyLimitExceeded {
		t.Fatalf("fourth send want daily_limit_exceeded got %s", fourth.Status)
	}

	f.now = f.now.Add(24 * time.Hour)
	fifth, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	if err != nil || fifth.Status != SendStatusSent {
		t.Fatalf("send after rolling window want sent, got %+v err=%v", fifth, err)
	}
}

func TestLocalGatewayResendInvalidatesPreviousCode(t *testing.T) {
	f := setupLocalGateway(t)
	ctx := context.Background()

	first, _ := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "registration"})
	firstCode := f.sender.lastCode(t)
	f.now = f.now.Add(2 * time.Minute)
	second, err := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "registration", Resend: true, PreviousSessionID: first.SessionID})
	if err != nil || second.Status != SendStatusSent {
		t.Fatalf("resend failed: %+v %v", second, err)
	}

	old, err := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: first.SessionID, Code: firstCode})
	if err != nil {
		t.Fatalf("verify old failed: %v", err)
	}
	if old.Verified || old.Reason != VerifyReasonExpired {
		t.Fatalf("old code must be unusable, got %+v", old)
	}
}

func TestLocalGatewayAttemptsExhausted(t *testing.T) {
	f := setupLocalGateway(t)
	ctx := context.Background()

	sent, _ := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	code := f.sender.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 4; i >= 1; i-- {
		res, err := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: wrong})
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if res.Reason != VerifyReasonIncorrect || res.AttemptsRemaining != i {
			t.Fatalf("want incorrect with %d remaining, got %+v", i, res)
		}
	}
	last, _ := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: wrong})
	if last.Reason != VerifyReasonAttemptsExhausted {
		t.Fatalf("fifth wrong attempt want attempts_exhausted got %+v", last)
	}
	correct, _ := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: code})
	if correct.Verified {
		t.Fatalf("exhausted session must not verify even with the correct code")
	}
}

func TestLocalGatewayExpiresAfterLifetime(t *testing.T) {
	f := setupLocalGateway(t)
	ctx := context.Background()

	sent, _ := f.gateway.Send(ctx, SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	code := f.sender.lastCode(t)
	f.now = f.now.Add(10 * time.Minute)
	res, err := f.gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: sent.SessionID, Code: code})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Reason != VerifyReasonExpired {
		t.Fatalf("want expired got %+v", res)
	}
}

func TestLocalGatewaySkipsForeignNumbers(t *testing.T) {
	f := setupLocalGateway(t)
	res, err := f.gateway.Send(context.Background(), SendRequest{PhoneNumber: "+33612345678", Purpose: "registration"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != SendStatusSkipped || res.Token == "" {
		t.Fatalf("expected skipped with token, got %+v", res)
	}
	claims, err := f.tokens.Parse(res.Token)
	if err != nil || !claims.Skipped {
		t.Fatalf("expected skipped claims, got %+v err=%v", claims, err)
	}
	if len(f.sender.messages) != 0 {
		t.Fatalf("no sms should be sent for skipped numbers")
	}
}

func TestLocalGatewayDeliveryFailureDoesNotCreateSession(t *testing.T) {
	f := setupLocalGateway(t)
	f.sender.fail = errors.New("provider down")
	_, err := f.gateway.Send(context.Background(), SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	f.sender.fail = nil
	res, err := f.gateway.Send(context.Background(), SendRequest{PhoneNumber: drcPhone, Purpose: "login"})
	if err != nil || res.Status != SendStatusSent {
		t.Fatalf("failed delivery must not start cooldown, got %+v %v", res, err)
	}
}

func TestLocalGatewayRejectsInvalidInput(t *testing.T) {
	f := setupLocalGateway(t)
	if _, err := f.gateway.Send(context.Background(), SendRequest{PhoneNumber: "abc"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.gateway.Verify(context.Background(), VerifyRequest{PhoneNumber: drcPhone}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty verify, got %v", err)
	}
}
