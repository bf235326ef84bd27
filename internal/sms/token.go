package sms

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 验证令牌无效
var ErrInvalidToken = errors.New("invalid verification token")

// VerificationClaims 手机号验证令牌声明
type VerificationClaims struct {
	Phone     string `json:"phone"`
	Purpose   string `json:"purpose"`
	SessionID string `json:"session_id"`
	Skipped   bool   `json:"skipped,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发与解析手机号验证令牌（HS256）
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建令牌签发器
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "authcore"
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue 签发验证令牌
func (t *TokenIssuer) Issue(phone, purpose, sessionID string, skipped bool) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := VerificationClaims{
		Phone:     phone,
		Purpose:   purpose,
		SessionID: sessionID,
		Skipped:   skipped,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   phone,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 解析验证令牌
func (t *TokenIssuer) Parse(tokenString string) (*VerificationClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	claims := &VerificationClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
