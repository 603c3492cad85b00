package service

import (
	"github.com/bwmarrin/snowflake"
)

// Options 服务构造参数，由启动流程从配置组装
type Options struct {
	Node           *snowflake.Node
	Limits         BetLimits
	Odds           OddsTable
	SettlePageSize int
	AutoSettle     func() bool
	WebhookSecret  func(provider string) string
}

// Services 全部业务服务，启动时构造一次后注入控制器与 worker
type Services struct {
	Bet        BetService
	Settlement SettlementService
	Result     ResultService
	Webhook    WebhookService
	Pix        PixService
	Account    AccountService
}

func NewServices(env *Env, opt Options) *Services {
	settlement := NewSettlementService(env, opt.Odds, opt.SettlePageSize)
	return &Services{
		Bet:        NewBetService(env, opt.Node, opt.Limits),
		Settlement: settlement,
		Result:     NewResultService(env, settlement, opt.AutoSettle),
		Webhook:    NewWebhookService(env, opt.WebhookSecret),
		Pix:        NewPixService(env),
		Account:    NewAccountService(env),
	}
}
