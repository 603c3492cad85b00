package service

import (
	"context"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditPolicy 流水写入失败时的处理策略
type AuditPolicy int

const (
	// AuditBestEffort 流水失败仅记录日志，余额变更照常提交
	AuditBestEffort AuditPolicy = iota
	// AuditRequired 流水失败即整体失败（下注场景：资金变动必须有对应流水）
	AuditRequired
)

// 条件更新未命中后重新读取并重试的次数
const debitMaxAttempts = 3

// LedgerEntry 一次资金变动，Amount 恒为正数，方向由 Debit/Credit 决定
type LedgerEntry struct {
	UserID      int64
	Type        string
	Amount      decimal.Decimal
	Description string
	RefID       string
	TraceID     string
	At          time.Time
}

// Movement 扣款结果
type Movement struct {
	FromBalance decimal.Decimal
	FromBonus   decimal.Decimal
	Balance     decimal.Decimal // 变动后余额
	Bonus       decimal.Decimal // 变动后赠金
}

// Debit 扣款：先扣余额，不足部分扣赠金
// 账户行先以当前读锁定再拆分，扣减仍通过条件更新完成，守卫为 balance >= fromBalance AND bonus >= fromBonus；
// 未命中时重新读取后重试，最终不足时返回 ErrInsufficientFunds
func Debit(ctx context.Context, tx sqlx.ExtContext, e LedgerEntry, policy AuditPolicy) (*Movement, error) {
	amount := helper.Round2(e.Amount)
	if !amount.IsPositive() {
		return nil, invalidInput("debit amount must be positive")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	for attempt := 0; attempt < debitMaxAttempts; attempt++ {
		acc, err := model.GetAccountForUpdate(ctx, tx, e.UserID)
		if err != nil {
			if helper.IsNoRows(err) {
				return nil, notFound("account")
			}
			return nil, internal("load account", err)
		}
		mv, ok := splitDebit(acc, amount)
		if !ok {
			return nil, ErrInsufficientFunds
		}
		swapped, err := applyDebit(ctx, tx, e.UserID, mv, e.At)
		if err != nil {
			return nil, err
		}
		if !swapped {
			logger.WarnCtx(ctx, "debit guard missed, retrying",
				zap.Int64("user_id", e.UserID), zap.Int("attempt", attempt+1))
			continue
		}

		if err := appendTransaction(ctx, tx, e, amount.Neg(), policy); err != nil {
			return nil, err
		}
		return mv, nil
	}
	return nil, ErrInsufficientFunds
}

// splitDebit 基于账户快照计算拆分与变动后余额
func splitDebit(acc *model.Account, amount decimal.Decimal) (*Movement, bool) {
	fromBalance, fromBonus, ok := helper.SplitDebit(acc.Balance, acc.Bonus, amount)
	if !ok {
		return nil, false
	}
	return &Movement{
		FromBalance: fromBalance,
		FromBonus:   fromBonus,
		Balance:     acc.Balance.Sub(fromBalance),
		Bonus:       acc.Bonus.Sub(fromBonus),
	}, true
}

// applyDebit 按拆分条件扣减；快照已过期（资金被并发占用）时返回 false 且不写入
func applyDebit(ctx context.Context, tx sqlx.ExecerContext, userID int64, mv *Movement, at time.Time) (bool, error) {
	fromBalance := mv.FromBalance.StringFixed(2)
	fromBonus := mv.FromBonus.StringFixed(2)
	swapped, err := infmysql.CAS{
		Table: model.TableAccounts,
		Set: g.Record{
			"balance":    infmysql.Decr("balance", fromBalance),
			"bonus":      infmysql.Decr("bonus", fromBonus),
			"updated_at": at.UnixMilli(),
		},
		Guard: []exp.Expression{
			g.C("id").Eq(userID),
			g.C("balance").Gte(infmysql.Money(fromBalance)),
			g.C("bonus").Gte(infmysql.Money(fromBonus)),
		},
	}.Exec(ctx, tx)
	if err != nil {
		return false, internal("debit account", err)
	}
	return swapped, nil
}

// Credit 入账到余额（原子自增），账户不存在返回 NotFound
func Credit(ctx context.Context, tx sqlx.ExtContext, e LedgerEntry, policy AuditPolicy) error {
	amount := helper.Round2(e.Amount)
	if !amount.IsPositive() {
		return invalidInput("credit amount must be positive")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	swapped, err := infmysql.CAS{
		Table: model.TableAccounts,
		Set: g.Record{
			"balance":    infmysql.Incr("balance", amount.StringFixed(2)),
			"updated_at": e.At.UnixMilli(),
		},
		Guard: []exp.Expression{g.C("id").Eq(e.UserID)},
	}.Exec(ctx, tx)
	if err != nil {
		return internal("credit account", err)
	}
	if !swapped {
		return notFound("account")
	}
	return appendTransaction(ctx, tx, e, amount, policy)
}

func appendTransaction(ctx context.Context, tx sqlx.ExtContext, e LedgerEntry, signed decimal.Decimal, policy AuditPolicy) error {
	t := &model.Transaction{
		UserID:      e.UserID,
		Type:        e.Type,
		Amount:      signed,
		Description: e.Description,
		RefID:       e.RefID,
		TraceID:     e.TraceID,
		CreatedAt:   e.At.UnixMilli(),
	}
	err := t.Insert(ctx, tx)
	if err == nil {
		return nil
	}
	if policy == AuditRequired {
		return internal("append transaction", err)
	}
	metrics.RecordLedgerAuditFailure(e.Type)
	logger.ErrorCtx(ctx, "append transaction failed, balance change kept",
		zap.Int64("user_id", e.UserID),
		zap.String("type", e.Type),
		zap.String("amount", signed.StringFixed(2)),
		zap.String("ref_id", e.RefID),
		zap.Error(err))
	return nil
}
