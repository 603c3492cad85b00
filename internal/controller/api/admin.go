package api

import (
	"strings"

	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"
)

// AdminController 开奖与结算管理接口（需管理员认证）
type AdminController struct{ baseController }

// PublishResult POST /api/admin/results
func (c *AdminController) PublishResult() {
	traceID := c.traceID()
	req, ok, msg := helper.ParseJSON[helper.ResultRequest](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := deps.Services.Result.PublishResult(c.reqCtx(), service.ResultInput{
		Lottery:      req.Lottery,
		TimeSlotCode: req.TimeSlotCode,
		DrawDate:     req.DrawDate,
		Numbers:      helper.FlexStrings(req.Numbers),
		CreatedBy:    c.actor(),
	})
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(&c.Controller, out, traceID)
}

// SettleResult POST /api/admin/results/:id/settle
// 单注失败记录在 errors 中，不影响整体 200
func (c *AdminController) SettleResult() {
	id, ok := c.pathID(":id")
	if !ok {
		return
	}
	out, err := deps.Services.Settlement.SettleResult(c.reqCtx(), id, service.TriggerAPI)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, out, c.traceID())
}

// Compare GET /api/admin/bets/:id/compare?resultId=
func (c *AdminController) Compare() {
	id, ok := c.pathID(":id")
	if !ok {
		return
	}
	resultID := int64(c.queryInt("resultId", 0))
	out, err := deps.Services.Settlement.PreviewCompare(c.reqCtx(), id, resultID)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, out, c.traceID())
}

// ManualSettle POST /api/admin/bets/:id/settle
func (c *AdminController) ManualSettle() {
	traceID := c.traceID()
	id, ok := c.pathID(":id")
	if !ok {
		return
	}
	req, ok, msg := helper.ParseJSON[helper.ManualSettleRequest](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := deps.Services.Settlement.ManualSettle(c.reqCtx(), service.ManualInput{
		BetID:    id,
		ResultID: req.ResultID,
		Action:   strings.ToUpper(req.Action),
		Reason:   req.Reason,
		Actor:    c.actor(),
	})
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Recheck POST /api/admin/bets/:id/recheck
// 并发复核只有一次返回 200，其余 409
func (c *AdminController) Recheck() {
	traceID := c.traceID()
	id, ok := c.pathID(":id")
	if !ok {
		return
	}
	var req helper.RecheckRequest
	if len(c.Ctx.Input.RequestBody) > 0 {
		if req, ok, _ = helper.ParseJSON[helper.RecheckRequest](c.Ctx); !ok {
			response.BadRequest(&c.Controller, "invalid resultId", traceID)
			return
		}
	}
	out, err := deps.Services.Settlement.Recheck(c.reqCtx(), id, req.ResultID)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, out, traceID)
}
