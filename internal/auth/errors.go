package auth

import "errors"

// 认证相关错误定义
var (
	// 回调签名错误
	ErrMissingSignature     = errors.New("missing signature")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")

	// JWT Token 错误
	ErrMissingToken         = errors.New("missing authorization token")
	ErrInvalidTokenFormat   = errors.New("invalid token format")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")

	// 管理员认证错误
	ErrNotAdmin          = errors.New("admin privileges required")
	ErrAdminAuthDisabled = errors.New("admin authentication is disabled")
)
