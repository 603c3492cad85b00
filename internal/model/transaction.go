package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// 流水类型
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdraw   = "withdraw_request"
	TxTypeBet        = "bet"
	TxTypePrize      = "prize"
	TxTypePixDeposit = "pix_deposit"
)

// Transaction 对应 transactions 表（追加式资金流水，只增不改）
// amount 为有符号金额：扣款为负，入账为正
type Transaction struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Type        string          `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	RefID       string          `db:"ref_id"` // 关联业务ID（注单号/充值单号）
	TraceID     string          `db:"trace_id"`
	CreatedAt   int64           `db:"created_at"`
}

// Insert 追加一条流水
func (t *Transaction) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	sqlStr := "INSERT INTO transactions (user_id, type, amount, description, ref_id, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, t.UserID, t.Type, t.Amount.StringFixed(2), t.Description, t.RefID, t.TraceID, t.CreatedAt)
	return err
}

// ListTransactionsByRef 按关联业务ID查询流水
func ListTransactionsByRef(ctx context.Context, q sqlx.QueryerContext, refID string) ([]Transaction, error) {
	sqlStr := "SELECT id, user_id, type, amount, description, ref_id, trace_id, created_at FROM transactions WHERE ref_id = ? ORDER BY id ASC"
	var list []Transaction
	if err := sqlx.SelectContext(ctx, q, &list, sqlStr, refID); err != nil {
		return nil, err
	}
	return list, nil
}
