package middleware

import (
	"errors"
	"net/http"

	"lotto-server/common/logger"
	"lotto-server/internal/auth"
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// UserAuthFilter 用户认证过滤器（JWT Token）
// 验证通过后写入 user_id / username / is_admin
func UserAuthFilter(v *auth.Verifier) web.FilterFunc {
	return func(ctx *beegocontext.Context) {
		traceID := helper.GetTraceID(ctx)

		claims, err := v.ParseBearer(ctx.Request.Context(), ctx.Input.Header("Authorization"))
		if err != nil {
			logger.Warn("user authentication failed",
				zap.String("trace_id", traceID),
				zap.Error(err))
			abort(ctx, http.StatusUnauthorized, tokenErrorCode(err), "")
			return
		}

		ctx.Input.SetData("user_id", claims.UserID)
		ctx.Input.SetData("username", claims.Username)
		ctx.Input.SetData("is_admin", claims.IsAdmin)

		logger.Debug("user authentication successful",
			zap.String("trace_id", traceID),
			zap.Int64("user_id", claims.UserID))
	}
}

// tokenErrorCode 根据错误类型返回不同的错误码
func tokenErrorCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return response.CodeUnauthorized
	case errors.Is(err, auth.ErrTokenRevoked):
		return response.CodeTokenRevoked
	case errors.Is(err, auth.ErrInvalidTokenFormat),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidSigningMethod):
		return response.CodeInvalidToken
	default:
		return response.CodeUnauthorized
	}
}
