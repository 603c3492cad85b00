package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignWebhook 计算回调签名：hex(HMAC-SHA256(body, secret))
func SignWebhook(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhookSignature 校验回调签名，兼容 "sha256=" 前缀与大小写
// 未配置密钥时一律拒绝
func VerifyWebhookSignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return ErrWebhookSecretMissing
	}
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return ErrMissingSignature
	}
	if i := strings.IndexByte(sig, '='); i >= 0 && strings.EqualFold(sig[:i], "sha256") {
		sig = sig[i+1:]
	}
	expected := SignWebhook(secret, body)
	if !secureCompare(strings.ToLower(sig), expected) {
		return ErrInvalidSignature
	}
	return nil
}

// secureCompare 恒定时间字符串比较
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}
