package middleware

import (
	"time"

	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// abort 输出统一错误结构并终止后续处理
func abort(ctx *beegocontext.Context, httpStatus, code int, message string) {
	if message == "" {
		message = response.ErrorMessages[code]
	}
	ctx.Output.SetStatus(httpStatus)
	_ = ctx.Output.JSON(response.APIResponse{
		Code:      code,
		Message:   message,
		TraceID:   helper.GetTraceID(ctx),
		Timestamp: time.Now().UnixMilli(),
	}, false, false)
}
