package service

import (
	"context"
	"strconv"
	"strings"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ChargeInput 创建 PIX 充值单
type ChargeInput struct {
	UserID        int64
	Amount        string
	CorrelationID string // 为空时生成
}

// ChargeOutput 充值单
type ChargeOutput struct {
	ChargeID      string `json:"charge_id"`
	CorrelationID string `json:"correlation_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
}

type PixService interface {
	// CreateCharge 记录待支付充值单，渠道下单由外部完成
	CreateCharge(ctx context.Context, in ChargeInput) (*ChargeOutput, error)
}

type pixService struct {
	env *Env
}

func NewPixService(env *Env) PixService { return &pixService{env: env} }

func (s *pixService) CreateCharge(ctx context.Context, in ChargeInput) (*ChargeOutput, error) {
	amount, ok := helper.ParseMoney(in.Amount)
	if !ok || !amount.IsPositive() {
		return nil, invalidInput("amount must be a positive value")
	}
	amount = helper.Round2(amount)
	corr := strings.TrimSpace(in.CorrelationID)
	if corr == "" {
		corr = uuid.NewString()
	}
	if len(corr) > 64 {
		return nil, invalidInput("correlationId too long")
	}

	charge := &model.PixCharge{
		UserID:        in.UserID,
		Amount:        amount,
		Status:        model.PixStatusPending,
		CorrelationID: corr,
	}
	var id int64
	err := s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := model.GetAccount(ctx, tx, in.UserID); err != nil {
			if helper.IsNoRows(err) {
				return notFound("account")
			}
			return internal("load account", err)
		}
		var err error
		id, err = charge.Insert(ctx, tx)
		if err != nil {
			if infmysql.IsDuplicateKey(err) {
				return &Error{Kind: KindConflict, Msg: "correlationId already used"}
			}
			return internal("insert pix charge", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "pix charge created",
		zap.Int64("user_id", in.UserID),
		zap.Int64("charge_id", id),
		zap.String("correlation_id", corr),
		zap.String("amount", amount.StringFixed(2)))
	return &ChargeOutput{
		ChargeID:      strconv.FormatInt(id, 10),
		CorrelationID: corr,
		Amount:        amount.StringFixed(2),
		Status:        model.PixStatusPending,
	}, nil
}
