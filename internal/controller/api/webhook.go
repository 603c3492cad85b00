package api

import (
	"strings"

	"lotto-server/common/logger"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	"go.uber.org/zap"
)

// 渠道签名头，按顺序取第一个非空值
var signatureHeaders = []string{"X-Webhook-Signature", "X-OpenPix-Signature", "X-Signature"}

type WebhookController struct{ baseController }

// Pix 支付渠道回调：POST /api/webhooks/pix/:provider
// 验签失败、报文错误、重复事件、找不到充值单都应答 200，避免渠道无限重试；
// 内部错误（存储故障、事务超时）已整体回滚，应答 500 让渠道重投
func (c *WebhookController) Pix() {
	provider := c.Ctx.Input.Param(":provider")
	var sig string
	for _, h := range signatureHeaders {
		if sig = strings.TrimSpace(c.Ctx.Input.Header(h)); sig != "" {
			break
		}
	}

	outcome, err := deps.Services.Webhook.HandlePixWebhook(c.reqCtx(), service.WebhookInput{
		Provider:  provider,
		Signature: sig,
		Body:      c.Ctx.Input.RequestBody,
	})
	if webhookNeedsRetry(err) {
		c.fail(err)
		return
	}
	if err != nil {
		logger.WarnCtx(c.reqCtx(), "pix webhook not applied",
			zap.String("provider", provider),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
	response.Success(&c.Controller, map[string]interface{}{
		"received": true,
	}, c.traceID())
}

// webhookNeedsRetry 仅内部错误需要渠道重投
func webhookNeedsRetry(err error) bool {
	return err != nil && service.KindOf(err) == service.KindInternal
}
