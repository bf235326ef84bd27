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

	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/phone"
)

// Message 待投递短信
type Message struct {
	To     string `json:"to"`
	Body   string `json:"body"`
	Locale string `json:"locale"`
}

// Sender 短信投递通道
type Sender interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// LogSender 开发环境通道：仅记录脱敏日志
type LogSender struct{}

// Name 通道名称
func (LogSender) Name() string { return "log" }

// Deliver 记录短信投递
func (LogSender) Deliver(_ context.Context, msg Message) error {
	logger.Infow("sms_delivered_to_log",
		"to", phone.Mask(msg.To),
		"locale", msg.Locale,
		"body_length", len(msg.Body),
	)
	return nil
}

// HTTPSender 通用短信服务商 HTTP 通道
type HTTPSender struct {
	url    string
	token  string
	from   string
	client *http.Client
}

// NewHTTPSender 创建 HTTP 通道
func NewHTTPSender(url, token, from string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		from:   strings.TrimSpace(from),
		client: &http.Client{Timeout: timeout},
	}
}

// Name 通道名称
func (s *HTTPSender) Name() string { return "http" }

// Deliver 调用服务商接口投递短信
func (s *HTTPSender) Deliver(ctx context.Context, msg Message) error {
	if s.url == "" {
		return fmt.Errorf("sms sender url is empty")
	}
	payload, err := json.Marshal(map[string]string{
		"from": s.from,
		"to":   msg.To,
		"text": msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms sender request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms sender status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// RenderMessage 根据语言渲染验证码短信
func RenderMessage(templates map[string]string, locale, code string) string {
	template := ""
	if templates != nil {
		template = templates[normalizeLocale(locale)]
		if template == "" {
			template = templates["fr"]
		}
	}
	if template == "" || !strings.Contains(template, "%s") {
		template = "Code: %s"
	}
	return fmt.Sprintf(template, code)
}

func normalizeLocale(locale string) string {
	trimmed := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(trimmed, "-_"); idx > 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "fr"
	}
	return trimmed
}
