package redis

import "strconv"

// Redis Key 定义与构造器

const (
	// PrefixIdemResult 幂等结果缓存：缓存 (user, key) 第一次成功结果与请求指纹
	PrefixIdemResult = "lotto:idem:result:"
	// PrefixIdemLock 幂等进行中锁：SETNX + TTL 吸收瞬时重复请求
	PrefixIdemLock = "lotto:idem:lock:"
	// PrefixTokenBlacklist 已注销的 JWT
	PrefixTokenBlacklist = "lotto:jwt:blacklist:"
	// PrefixRateLimit 滑动窗口限流
	PrefixRateLimit = "lotto:ratelimit:"
)

// IdemResultKey 形如 lotto:idem:result:{user_id}:{idempotency_key}
func IdemResultKey(userID int64, k string) string {
	return PrefixIdemResult + strconv.FormatInt(userID, 10) + ":" + k
}

// IdemLockKey 形如 lotto:idem:lock:{user_id}:{idempotency_key}
func IdemLockKey(userID int64, k string) string {
	return PrefixIdemLock + strconv.FormatInt(userID, 10) + ":" + k
}

// TokenBlacklistKey 形如 lotto:jwt:blacklist:{jti}
func TokenBlacklistKey(jti string) string { return PrefixTokenBlacklist + jti }

// RateLimitKey 形如 lotto:ratelimit:{dimension}:{key}
func RateLimitKey(dimension, key string) string { return PrefixRateLimit + dimension + ":" + key }
