package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway 远端验证码网关客户端
// 请求 {base}/send 与 {base}/verify，响应为 {status_code, msg, data} 信封
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type gatewayEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

// NewHTTPGateway 创建远端网关客户端；超时由调用方 context 控制
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

// Send 发送验证码
func (g *HTTPGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	var result SendResult
	if err := g.call(ctx, "/send", req, &result); err != nil {
		return nil, err
	}
	switch result.Status {
	case SendStatusSent, SendStatusSkipped, SendStatusDailyLimitExceeded, SendStatusCooldown:
		return &result, nil
	default:
		return nil, fmt.Errorf("%w: unknown send status %q", ErrGatewayUnavailable, result.Status)
	}
}

// Verify 校验验证码
func (g *HTTPGateway) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var result VerifyResult
	if err := g.call(ctx, "/verify", req, &result); err != nil {
		return nil, err
	}
	if result.Verified {
		return &result, nil
	}
	switch result.Reason {
	case VerifyReasonExpired, VerifyReasonAlreadyVerified, VerifyReasonIncorrect, VerifyReasonNotFound, VerifyReasonAttemptsExhausted:
		return &result, nil
	default:
		return nil, fmt.Errorf("%w: unknown verify reason %q", ErrGatewayUnavailable, result.Reason)
	}
}

func (g *HTTPGateway) call(ctx context.Context, path string, body interface{}, dest interface{}) error {
	if g.baseURL == "" {
		return fmt.Errorf("%w: base url is empty", ErrGatewayUnavailable)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-Gateway-Key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	var envelope gatewayEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrGatewayUnavailable, err)
	}
	if envelope.StatusCode == 400 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, envelope.Msg)
	}
	if envelope.StatusCode != 0 {
		return fmt.Errorf("%w: status_code %d: %s", ErrGatewayUnavailable, envelope.StatusCode, envelope.Msg)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrGatewayUnavailable, err)
	}
	return nil
}
