package api

import (
	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"
)

type PixController struct{ baseController }

// CreateCharge 记录待支付充值单：POST /api/pix/charges
func (c *PixController) CreateCharge() {
	traceID := c.traceID()
	req, ok, msg := helper.ParseJSON[helper.ChargeRequest](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	out, err := deps.Services.Pix.CreateCharge(c.reqCtx(), service.ChargeInput{
		UserID:        c.userID(),
		Amount:        req.Amount.String(),
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(&c.Controller, out, traceID)
}
