package api

import (
	"context"
	"time"

	"lotto-server/common/logger"

	"go.uber.org/zap"
)

// HealthController 提供健康检查端点：/healthz 与 /readyz
type HealthController struct{ baseController }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：探测 MySQL / Redis 连通性
func (c *HealthController) Readyz() {
	if deps.Ready != nil {
		ctx, cancel := context.WithTimeout(c.reqCtx(), 2*time.Second)
		defer cancel()
		if err := deps.Ready(ctx); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			c.Ctx.Output.SetStatus(503)
			_ = c.Ctx.Output.Body([]byte("not ready"))
			return
		}
	}
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
