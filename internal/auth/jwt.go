package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"lotto-server/common/logger"
	infrds "lotto-server/internal/infra/redis"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Claims JWT Token 的 Claims 结构
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Verifier 签发与校验用户 Token；Redis 为空时不支持注销（黑名单降级为放行）
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	rdb    goredis.Cmdable
}

func NewVerifier(secret, issuer string, ttl time.Duration, rdb goredis.Cmdable) *Verifier {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, ttl: ttl, rdb: rdb}
}

// Issue 生成访问令牌
func (v *Verifier) Issue(userID int64, username string, isAdmin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseBearer 解析 "Bearer <token>" 形式的 Authorization 头
func (v *Verifier) ParseBearer(ctx context.Context, header string) (*Claims, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrInvalidTokenFormat
	}
	return v.Parse(ctx, parts[1])
}

// Parse 校验签名、有效期、签发方与黑名单
func (v *Verifier) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		logger.Warn("jwt parse failed", zap.Error(err))
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	if v.isRevoked(ctx, claims.ID) {
		logger.Warn("token is blacklisted", zap.Int64("user_id", claims.UserID))
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke 注销 Token（按 jti 加入黑名单直到过期）
func (v *Verifier) Revoke(ctx context.Context, claims *Claims) error {
	if v.rdb == nil || claims == nil || claims.ID == "" {
		logger.Warn("redis not available, cannot revoke token")
		return nil
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return v.rdb.Set(ctx, infrds.TokenBlacklistKey(claims.ID), "1", ttl).Err()
}

func (v *Verifier) isRevoked(ctx context.Context, jti string) bool {
	if v.rdb == nil || jti == "" {
		return false
	}
	n, err := v.rdb.Exists(ctx, infrds.TokenBlacklistKey(jti)).Result()
	if err != nil {
		logger.Warn("failed to check token blacklist", zap.Error(err))
		return false
	}
	return n > 0
}
