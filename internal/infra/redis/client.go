package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// New 根据配置创建 Redis 客户端；addr 为空返回 nil（Redis 为可选依赖）
func New(addr, password string, db int) *goredis.Client {
	if addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Ping 在给定超时时间内探测 Redis 连接是否可用，nil 客户端视为可用
func Ping(ctx context.Context, rdb goredis.Cmdable, timeout time.Duration) error {
	if rdb == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(c).Err()
}

// releaseScript 仅当锁值匹配时删除，避免误删他人持有的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// ReleaseLock 释放 SETNX 锁
func ReleaseLock(ctx context.Context, rdb goredis.Scripter, key, value string) error {
	return releaseScript.Run(ctx, rdb, []string{key}, value).Err()
}
