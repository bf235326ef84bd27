package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newEnvelopeServer(t *testing.T, handler func(path string, body map[string]interface{}) (int, interface{})) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Gateway-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		code, data := handler(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": code,
			"msg":         "ok",
			"data":        data,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPGatewaySendDecodesEnvelope(t *testing.T) {
	server := newEnvelopeServer(t, func(path string, body map[string]interface{}) (int, interface{}) {
		if path != "/send" {
			t.Fatalf("unexpected path %s", path)
		}
		if body["previous_session_id"] != "old" {
			t.Fatalf("expected previous session id forwarded, got %v", body["previous_session_id"])
		}
		return 0, map[string]interface{}{"status": "sent", "session_id": "new", "daily_remaining": 1}
	})
	gateway := NewHTTPGateway(server.URL+"/", "secret", time.Second)
	res, err := gateway.Send(context.Background(), SendRequest{PhoneNumber: drcPhone, Resend: true, PreviousSessionID: "old"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if res.Status != SendStatusSent || res.SessionID != "new" || res.DailyRemaining != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPGatewayVerifyReasons(t *testing.T) {
	server := newEnvelopeServer(t, func(path string, body map[string]interface{}) (int, interface{}) {
		return 0, map[string]interface{}{"verified": false, "reason": "incorrect", "attempts_remaining": 2}
	})
	gateway := NewHTTPGateway(server.URL, "secret", time.Second)
	res, err := gateway.Verify(context.Background(), VerifyRequest{PhoneNumber: drcPhone, SessionID: "s", Code: "1"})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Reason != VerifyReasonIncorrect || res.AttemptsRemaining != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPGatewayUnknownStatusIsUnavailable(t *testing.T) {
	server := newEnvelopeServer(t, func(path string, body map[string]interface{}) (int, interface{}) {
		return 0, map[string]interface{}{"status": "queued"}
	})
	gateway := NewHTTPGateway(server.URL, "secret", time.Second)
	if _, err := gateway.Send(context.Background(), SendRequest{PhoneNumber: drcPhone}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestHTTPGatewayBusinessErrorMapping(t *testing.T) {
	server := newEnvelopeServer(t, func(path string, body map[string]interface{}) (int, interface{}) {
		return 400, nil
	})
	gateway := NewHTTPGateway(server.URL, "secret", time.Second)
	if _, err := gateway.Send(context.Background(), SendRequest{PhoneNumber: "x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	unauthorized := NewHTTPGateway(server.URL, "wrong", time.Second)
	if _, err := unauthorized.Send(context.Background(), SendRequest{PhoneNumber: drcPhone}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable on http 401, got %v", err)
	}
}

func TestHTTPGatewayHonoursContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)
	gateway := NewHTTPGateway(server.URL, "secret", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := gateway.Verify(ctx, VerifyRequest{PhoneNumber: drcPhone, SessionID: "s", Code: "1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
