package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/constants"
)

func TestCaptchaImageChallengeVerify(t *testing.T) {
	svc := NewCaptchaService(config.CaptchaConfig{
		Provider: constants.CaptchaProviderImage,
		Scenes:   config.CaptchaSceneConfig{OTPRequest: true},
	})
	challenge, err := svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if challenge.CaptchaID == "" || challenge.ImageBase64 == "" {
		t.Fatalf("incomplete challenge %+v", challenge)
	}
	answer := svc.ensureImageStore(svc.setting).Get(challenge.CaptchaID, false)

	ctx := context.Background()
	if err := svc.Verify(ctx, constants.CaptchaSceneOTPRequest, CaptchaVerifyPayload{}, ""); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("missing payload want ErrCaptchaRequired got %v", err)
	}
	if err := svc.Verify(ctx, constants.CaptchaSceneOTPRequest, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: answer}, ""); err != nil {
		t.Fatalf("correct answer rejected: %v", err)
	}
	if err := svc.Verify(ctx, constants.CaptchaSceneOTPRequest, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: answer}, ""); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("challenge must be single use, got %v", err)
	}
	if err := svc.Verify(ctx, constants.CaptchaSceneLogin, CaptchaVerifyPayload{}, ""); err != nil {
		t.Fatalf("disabled scene must pass, got %v", err)
	}
}

func TestCaptchaTurnstileVerify(t *testing.T) {
	var remoteIP string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		remoteIP = r.PostForm.Get("remoteip")
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("secret") == "secret" && r.PostForm.Get("response") == "good-token" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer server.Close()

	svc := NewCaptchaService(config.CaptchaConfig{
		Provider: constants.CaptchaProviderTurnstile,
		Scenes:   config.CaptchaSceneConfig{Login: true},
		Turnstile: config.CaptchaTurnstileConfig{
			SiteKey:   "site",
			SecretKey: "secret",
			VerifyURL: server.URL,
			TimeoutMS: 1000,
		},
	})
	ctx := context.Background()
	if err := svc.Verify(ctx, constants.CaptchaSceneLogin, CaptchaVerifyPayload{TurnstileToken: "good-token"}, "10.1.2.3"); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if remoteIP != "10.1.2.3" {
		t.Fatalf("remote ip not forwarded, got %q", remoteIP)
	}
	if err := svc.Verify(ctx, constants.CaptchaSceneLogin, CaptchaVerifyPayload{TurnstileToken: "bad"}, ""); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("bad token want ErrCaptchaInvalid got %v", err)
	}

	public := svc.GetPublicSetting()
	if public["provider"] != constants.CaptchaProviderTurnstile {
		t.Fatalf("unexpected public provider %v", public["provider"])
	}
	if _, ok := public["turnstile"]; !ok {
		t.Fatalf("public setting must expose site key")
	}
}

func TestValidateCaptchaSetting(t *testing.T) {
	err := ValidateCaptchaSetting(CaptchaSetting{Provider: "none", Scenes: CaptchaSceneSetting{Login: true}})
	if !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("scene without provider want ErrCaptchaConfigInvalid got %v", err)
	}
	err = ValidateCaptchaSetting(CaptchaSetting{Provider: constants.CaptchaProviderTurnstile})
	if !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("turnstile without keys want ErrCaptchaConfigInvalid got %v", err)
	}
	if err := ValidateCaptchaSetting(CaptchaSetting{Provider: constants.CaptchaProviderImage}); err != nil {
		t.Fatalf("image provider must be valid: %v", err)
	}
}
