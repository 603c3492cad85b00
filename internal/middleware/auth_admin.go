package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"lotto-server/common/logger"
	"lotto-server/internal/auth"
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/config"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// AdminAuthFilter 管理员认证过滤器
// 接受两种凭证：配置中的静态管理 Token，或 is_admin=true 的用户 JWT
// 通过后写入 actor，用于人工结算审计
func AdminAuthFilter(v *auth.Verifier) web.FilterFunc {
	return func(ctx *beegocontext.Context) {
		cfg := config.GetCurrent()
		traceID := helper.GetTraceID(ctx)

		if cfg == nil || !cfg.Auth.Admin.Enabled {
			logger.Warn("admin auth disabled, reject", zap.String("trace_id", traceID))
			abort(ctx, http.StatusForbidden, response.CodeForbidden, auth.ErrAdminAuthDisabled.Error())
			return
		}

		header := strings.TrimSpace(ctx.Input.Header("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			logger.Warn("invalid admin token format", zap.String("trace_id", traceID))
			abort(ctx, http.StatusUnauthorized, response.CodeUnauthorized, "")
			return
		}
		token := parts[1]

		if static := cfg.Auth.Admin.Token; static != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(static)) == 1 {
			ctx.Input.SetData("is_admin", true)
			ctx.Input.SetData("actor", "admin-token")
			return
		}

		claims, err := v.Parse(ctx.Request.Context(), token)
		if err != nil {
			logger.Warn("invalid admin token",
				zap.String("trace_id", traceID),
				zap.String("token_prefix", token[:min(len(token), 8)]+"..."),
				zap.Error(err))
			abort(ctx, http.StatusUnauthorized, tokenErrorCode(err), "")
			return
		}
		if !claims.IsAdmin {
			logger.Warn("admin privileges required",
				zap.String("trace_id", traceID),
				zap.Int64("user_id", claims.UserID))
			abort(ctx, http.StatusForbidden, response.CodeForbidden, auth.ErrNotAdmin.Error())
			return
		}

		ctx.Input.SetData("is_admin", true)
		ctx.Input.SetData("user_id", claims.UserID)
		actor := claims.Username
		if actor == "" {
			actor = "user:" + strconv.FormatInt(claims.UserID, 10)
		}
		ctx.Input.SetData("actor", actor)
	}
}
