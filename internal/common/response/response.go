package response

import (
	"net/http"
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 错误消息
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess             = 0    // 成功
	CodeBadRequest          = 1000 // 参数错误
	CodeBusinessError       = 2000 // 业务错误（通用）
	CodeDuplicateInFlight   = 2001 // 重复请求进行中
	CodeDuplicateKey        = 2002 // 幂等键被不同请求复用
	CodeInvalidState        = 2003 // 状态不允许（已结算/已派奖）
	CodeActionReplayed      = 2004 // 人工操作已执行
	CodeInsufficientBalance = 2007 // 余额不足
	CodeUnauthorized        = 3000 // 未授权
	CodeInvalidToken        = 3001 // Token 无效
	CodeTokenRevoked        = 3003 // Token 已撤销
	CodeInvalidSignature    = 3004 // 签名无效
	CodeForbidden           = 3009 // 禁止访问
	CodeRateLimitExceeded   = 4000 // 请求频率超限
	CodeNotFound            = 4004 // 资源不存在
	CodeSystemError         = 5000 // 系统错误
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:             "success",
	CodeBadRequest:          "参数错误",
	CodeBusinessError:       "业务处理失败",
	CodeDuplicateInFlight:   "重复请求进行中，请稍后重试",
	CodeDuplicateKey:        "幂等键已用于其他请求",
	CodeInvalidState:        "当前状态不允许此操作",
	CodeActionReplayed:      "该操作已执行",
	CodeInsufficientBalance: "余额不足",
	CodeUnauthorized:        "未授权",
	CodeInvalidToken:        "Token 无效",
	CodeTokenRevoked:        "Token 已撤销",
	CodeInvalidSignature:    "签名无效",
	CodeForbidden:           "禁止访问",
	CodeRateLimitExceeded:   "请求过于频繁",
	CodeNotFound:            "资源不存在",
	CodeSystemError:         "系统繁忙，请稍后重试",
}

func write(c *beego.Controller, httpStatus, code int, message string, data interface{}, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   message,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// Success 成功响应（HTTP 200）
//
// 示例：
//
//	response.Success(c, map[string]interface{}{"bet_id": "1790000000000000001"}, traceID)
func Success(c *beego.Controller, data interface{}, traceID string) {
	write(c, http.StatusOK, CodeSuccess, ErrorMessages[CodeSuccess], data, traceID)
}

// Created 首次创建成功（HTTP 201），幂等重放走 Success
func Created(c *beego.Controller, data interface{}, traceID string) {
	write(c, http.StatusCreated, CodeSuccess, ErrorMessages[CodeSuccess], data, traceID)
}

// ErrorWithMessage 错误响应（使用自定义错误消息）
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, message string, traceID string) {
	write(c, httpStatus, code, message, nil, traceID)
}

// BadRequest 参数错误响应（HTTP 400）
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, http.StatusBadRequest, CodeBadRequest, message, traceID)
}
