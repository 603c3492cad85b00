package middleware

import (
	"net/http"
	"runtime/debug"

	"lotto-server/common/logger"
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// RecoveryChain Panic Recovery 过滤链
// 包裹后续处理，捕获未处理的 panic，防止进程崩溃
func RecoveryChain(next web.FilterFunc) web.FilterFunc {
	return func(ctx *beegocontext.Context) {
		defer func() {
			if err := recover(); err != nil {
				if err == web.ErrAbort {
					panic(err)
				}
				logger.Error("panic recovered",
					zap.String("trace_id", helper.GetTraceID(ctx)),
					zap.String("method", ctx.Request.Method),
					zap.String("path", ctx.Request.URL.Path),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())))

				if ctx.ResponseWriter.Started {
					return
				}
				abort(ctx, http.StatusInternalServerError, response.CodeSystemError, "")
			}
		}()
		next(ctx)
	}
}
