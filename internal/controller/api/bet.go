package api

import (
	"strings"

	"lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"
)

type BetController struct{ baseController }

// Place 下注：POST /api/bets
//
// 幂等键通过 Idempotency-Key 头传入，同一次下注的所有重试必须复用相同的 key：
//   - 首次成功：201 + 注单
//   - 完全相同的重放：200 + 首次注单快照（不再扣款）
//   - key 被不同请求复用，或同 key 请求仍在处理中：409
func (c *BetController) Place() {
	traceID := c.traceID()
	req, ok, msg := helper.ParseJSON[helper.BetRequest](c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	lines := make([]service.BetLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.BetLineInput{
			Modality:  l.Modality,
			Placement: l.Placement.String(),
			Guesses:   helper.FlexStrings(l.Guesses),
			StakeMode: l.StakeMode,
			Stake:     l.Stake.String(),
		})
	}

	out, status, err := deps.Services.Bet.PlaceBet(c.reqCtx(), service.BetInput{
		UserID:         c.userID(),
		Lottery:        req.Lottery,
		TimeSlotCode:   req.TimeSlotCode,
		DrawDate:       req.DrawDate,
		Lines:          lines,
		IdempotencyKey: strings.TrimSpace(c.Ctx.Input.Header("Idempotency-Key")),
		TraceID:        traceID,
	})
	if err != nil {
		c.fail(err)
		return
	}
	if status == service.IdemReplayed {
		c.Ctx.Output.Header("Idempotent-Replayed", "true")
		response.Success(&c.Controller, out, traceID)
		return
	}
	response.Created(&c.Controller, out, traceID)
}
