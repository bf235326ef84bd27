package service

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

// CredentialCheckInput 密码校验输入
type CredentialCheckInput struct {
	PhoneNumber       string `json:"phone_number"`
	Password          string `json:"password"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// CredentialCheckResult 密码校验结果
type CredentialCheckResult struct {
	Valid                bool   `json:"valid"`
	RequiresVerification bool   `json:"requires_phone_verification"`
	SessionToken         string `json:"session_token"`
	AccountID            string `json:"account_id"`
}

// CredentialChecker 账号密码校验后端
type CredentialChecker interface {
	CheckPassword(ctx context.Context, input CredentialCheckInput) (*CredentialCheckResult, error)
}

// HTTPCredentialChecker 托管认证后端的 HTTP 客户端
type HTTPCredentialChecker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type authBackendEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

// NewHTTPCredentialChecker 创建认证后端客户端
func NewHTTPCredentialChecker(baseURL, apiKey string, timeout time.Duration) *HTTPCredentialChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCredentialChecker{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckPassword 调用 POST {base}/password/check
// 后端返回 401 表示凭据错误，其余非成功状态视为不可用
func (c *HTTPCredentialChecker) CheckPassword(ctx context.Context, input CredentialCheckInput) (*CredentialCheckResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: base url is empty", ErrAuthBackendUnavailable)
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/password/check", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAuthBackendUnavailable, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &CredentialCheckResult{Valid: false}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrAuthBackendUnavailable, resp.StatusCode)
	}
	var envelope authBackendEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrAuthBackendUnavailable, err)
	}
	switch envelope.StatusCode {
	case 0:
	case http.StatusUnauthorized:
		return &CredentialCheckResult{Valid: false}, nil
	default:
		return nil, fmt.Errorf("%w: status_code %d: %s", ErrAuthBackendUnavailable, envelope.StatusCode, envelope.Msg)
	}
	var result CredentialCheckResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrAuthBackendUnavailable, err)
	}
	return &result, nil
}
