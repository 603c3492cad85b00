package api

import (
	"lotto-server/internal/common/response"
)

type UserController struct{ baseController }

// Balance GET /api/user/balance
func (c *UserController) Balance() {
	out, err := deps.Services.Account.GetBalance(c.reqCtx(), c.userID())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, out, c.traceID())
}

// Bets GET /api/user/bets?page=1&size=20
func (c *UserController) Bets() {
	page := c.queryInt("page", 1)
	size := c.queryInt("size", 20)
	out, err := deps.Services.Account.ListBets(c.reqCtx(), c.userID(), page, size)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"page":  page,
		"items": out,
	}, c.traceID())
}
