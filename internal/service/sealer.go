package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/panierscan/authcore/internal/logger"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer 使用 XChaCha20-Poly1305 加密待续登录凭据
type Sealer struct {
	key []byte
}

// NewSealer 根据配置口令派生密钥；口令为空时生成进程内临时密钥
// 临时密钥在进程重启后失效，已保存的凭据将无法解开
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSealKeyInvalid, err)
		}
		logger.Warnw("otp_seal_key_ephemeral")
		return &Sealer{key: key}, nil
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: at least 16 characters required", ErrSealKeyInvalid)
	}
	sum := sha256.Sum256([]byte(secret))
	return &Sealer{key: sum[:]}, nil
}

// Seal 加密明文，associated 绑定到安装标识，返回 base64(nonce || ciphertext)
func (s *Sealer) Seal(plaintext []byte, associated string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealKeyInvalid, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(associated))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open 解密 Seal 的输出
func (s *Sealer) Open(sealed string, associated string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedPayloadInvalid, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealKeyInvalid, err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedPayloadInvalid
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(associated))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedPayloadInvalid, err)
	}
	return plaintext, nil
}
