package routers

import (
	"lotto-server/internal/auth"
	"lotto-server/internal/controller/api"
	"lotto-server/internal/metrics"
	"lotto-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
	goredis "github.com/redis/go-redis/v9"
)

// Register 注册HTTP路由与全局过滤器；rdb 为空时限流降级为放行
func Register(v *auth.Verifier, rdb goredis.Cmdable) {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（包裹整个处理链）
	beego.InsertFilterChain("/*", middleware.RecoveryChain)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter, beego.WithReturnOnOutput(false))

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	limit := middleware.RateLimitFilter(rdb)

	// ========== 支付回调（签名校验在服务层完成） ==========
	beego.InsertFilter("/api/webhooks/*", beego.BeforeExec, limit)
	beego.Router("/api/webhooks/pix/:provider", &api.WebhookController{}, "post:Pix")

	// ========== 用户 API（JWT 认证 + 限流） ==========
	userAuth := middleware.UserAuthFilter(v)
	for _, p := range []string{"/api/bets", "/api/user/*", "/api/pix/*"} {
		beego.InsertFilter(p, beego.BeforeExec, userAuth)
		beego.InsertFilter(p, beego.BeforeExec, limit)
	}
	beego.Router("/api/bets", &api.BetController{}, "post:Place")
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/bets", &api.UserController{}, "get:Bets")
	beego.Router("/api/pix/charges", &api.PixController{}, "post:CreateCharge")

	// ========== 管理 API（需要管理员认证） ==========
	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter(v))
	beego.Router("/api/admin/results", &api.AdminController{}, "post:PublishResult")
	beego.Router("/api/admin/results/:id/settle", &api.AdminController{}, "post:SettleResult")
	beego.Router("/api/admin/bets/:id/compare", &api.AdminController{}, "get:Compare")
	beego.Router("/api/admin/bets/:id/settle", &api.AdminController{}, "post:ManualSettle")
	beego.Router("/api/admin/bets/:id/recheck", &api.AdminController{}, "post:Recheck")
}
