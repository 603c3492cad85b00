package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"lotto-server/common/logger"
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// Deps 控制器依赖，启动时通过 Setup 注入一次
type Deps struct {
	Services *service.Services
	// Ready 就绪检查（MySQL / Redis），为空时视为就绪
	Ready func(ctx context.Context) error
}

var deps Deps

// Setup 注入控制器依赖
func Setup(d Deps) { deps = d }

type baseController struct{ beego.Controller }

func (c *baseController) traceID() string { return helper.GetTraceID(c.Ctx) }

func (c *baseController) reqCtx() context.Context { return c.Ctx.Request.Context() }

// userID 由认证中间件注入
func (c *baseController) userID() int64 {
	uid, _ := c.Ctx.Input.GetData("user_id").(int64)
	return uid
}

func (c *baseController) actor() string {
	if a, ok := c.Ctx.Input.GetData("actor").(string); ok && a != "" {
		return a
	}
	return "admin"
}

// pathID 解析路由中的正整数 ID
func (c *baseController) pathID(name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Ctx.Input.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(&c.Controller, "invalid "+name[1:], c.traceID())
		return 0, false
	}
	return id, true
}

// queryInt 读取整型查询参数，缺省或非法时返回 def
func (c *baseController) queryInt(key string, def int) int {
	v, err := strconv.Atoi(c.Ctx.Input.Query(key))
	if err != nil {
		return def
	}
	return v
}

// fail 将业务错误映射为 HTTP 响应
func (c *baseController) fail(err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.reqCtx(), "request failed",
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.Error(err))
	}
	response.ErrorWithMessage(&c.Controller, status, code, msg, c.traceID())
}

// mapError 错误分类 → (HTTP 状态码, 业务码, 消息)
func mapError(err error) (int, int, string) {
	switch {
	case errors.Is(err, service.ErrDuplicateInFlight):
		return http.StatusConflict, response.CodeDuplicateInFlight, response.ErrorMessages[response.CodeDuplicateInFlight]
	case errors.Is(err, service.ErrFingerprintMismatch):
		return http.StatusConflict, response.CodeDuplicateKey, response.ErrorMessages[response.CodeDuplicateKey]
	case errors.Is(err, service.ErrAlreadySettled):
		return http.StatusConflict, response.CodeInvalidState, response.ErrorMessages[response.CodeInvalidState]
	case errors.Is(err, service.ErrActionReplayed):
		return http.StatusConflict, response.CodeActionReplayed, response.ErrorMessages[response.CodeActionReplayed]
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, response.CodeInvalidSignature, response.ErrorMessages[response.CodeInvalidSignature]
	}

	switch service.KindOf(err) {
	case service.KindInvalidInput:
		return http.StatusBadRequest, response.CodeBadRequest, err.Error()
	case service.KindInsufficientFunds:
		return http.StatusBadRequest, response.CodeInsufficientBalance, response.ErrorMessages[response.CodeInsufficientBalance]
	case service.KindNotFound:
		return http.StatusNotFound, response.CodeNotFound, err.Error()
	case service.KindConflict:
		return http.StatusConflict, response.CodeBusinessError, err.Error()
	case service.KindUnauthorized:
		return http.StatusUnauthorized, response.CodeUnauthorized, response.ErrorMessages[response.CodeUnauthorized]
	case service.KindForbidden:
		return http.StatusForbidden, response.CodeForbidden, response.ErrorMessages[response.CodeForbidden]
	}
	return http.StatusInternalServerError, response.CodeSystemError, response.ErrorMessages[response.CodeSystemError]
}
