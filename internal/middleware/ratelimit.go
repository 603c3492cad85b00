package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chelper "lotto-server/common/helper"
	"lotto-server/common/logger"
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/config"
	infrds "lotto-server/internal/infra/redis"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFilter 限流中间件
// 支持按IP、按用户两个维度；rdb 为空时跳过（降级）
func RateLimitFilter(rdb goredis.Cmdable) web.FilterFunc {
	return func(ctx *beegocontext.Context) {
		cfg := config.GetCurrent()
		if cfg == nil || !cfg.RateLimit.Enabled || rdb == nil {
			return
		}
		traceID := helper.GetTraceID(ctx)
		reqCtx := ctx.Request.Context()

		// 1. 按IP限流
		if lim := cfg.RateLimit.ByIP; lim.RequestsPerWindow > 0 {
			clientIP := getClientIP(ctx)
			if !checkRateLimit(reqCtx, rdb, "ip", clientIP, lim.RequestsPerWindow, lim.WindowSeconds) {
				logger.Warn("ip rate limit exceeded",
					zap.String("trace_id", traceID),
					zap.String("client_ip", clientIP))
				abort(ctx, http.StatusTooManyRequests, response.CodeRateLimitExceeded, "")
				return
			}
		}

		// 2. 按用户限流（需在认证之后执行）
		if lim := cfg.RateLimit.ByUser; lim.RequestsPerWindow > 0 {
			if uid, ok := ctx.Input.GetData("user_id").(int64); ok && uid > 0 {
				if !checkRateLimit(reqCtx, rdb, "user", strconv.FormatInt(uid, 10), lim.RequestsPerWindow, lim.WindowSeconds) {
					logger.Warn("user rate limit exceeded",
						zap.String("trace_id", traceID),
						zap.Int64("user_id", uid))
					abort(ctx, http.StatusTooManyRequests, response.CodeRateLimitExceeded, "")
					return
				}
			}
		}
	}
}

// checkRateLimit 检查限流（Sorted Set 滑动窗口）
// Redis 错误时放行
func checkRateLimit(ctx context.Context, rdb goredis.Cmdable, dimension, key string, limit int, windowSeconds int) bool {
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	redisKey := infrds.RateLimitKey(dimension, key)
	now := time.Now()
	windowStart := now.UnixMilli() - int64(windowSeconds)*1000

	pipe := rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart, 10), "+inf")
	pipe.ZAdd(ctx, redisKey, goredis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d_%d", now.UnixMilli(), now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, time.Duration(windowSeconds+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("rate limit check failed", zap.Error(err))
		return true
	}
	count, err := countCmd.Result()
	if err != nil {
		logger.Warn("rate limit count failed", zap.Error(err))
		return true
	}
	return count < int64(limit)
}

// getClientIP 获取客户端真实IP
func getClientIP(ctx *beegocontext.Context) string {
	return chelper.ClientIP(ctx.Request.Header, ctx.Request.RemoteAddr)
}
