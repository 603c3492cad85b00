package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const TablePixCharges = "pix_charges"

// PIX 充值单状态
const (
	PixStatusPending = "pending"
	PixStatusPaid    = "paid"
)

// PixCharge 对应 pix_charges 表
// credited 是入账闸门，与回调去重表相互独立
type PixCharge struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"status"`
	Credited      int8            `db:"credited"` // 0=未入账 1=已入账
	CorrelationID string          `db:"correlation_id"`
	TransactionID string          `db:"transaction_id"` // 渠道交易号
	PaidAt        sql.NullInt64   `db:"paid_at"`
	CreatedAt     int64           `db:"created_at"`
	UpdatedAt     int64           `db:"updated_at"`
}

const pixColumns = "id, user_id, amount, status, credited, correlation_id, transaction_id, paid_at, created_at, updated_at"

// Insert 新增充值单，返回自增 ID
func (c *PixCharge) Insert(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO pix_charges (user_id, amount, status, credited, correlation_id, transaction_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, c.UserID, c.Amount.StringFixed(2), c.Status, c.Credited, c.CorrelationID, c.TransactionID, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindPixCharge 先按渠道交易号、再按 correlation id 查找充值单
func FindPixCharge(ctx context.Context, q sqlx.QueryerContext, transactionID, correlationID string) (*PixCharge, error) {
	var c PixCharge
	if transactionID != "" {
		err := sqlx.GetContext(ctx, q, &c, "SELECT "+pixColumns+" FROM pix_charges WHERE transaction_id = ? LIMIT 1", transactionID)
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if correlationID == "" {
		return nil, sql.ErrNoRows
	}
	if err := sqlx.GetContext(ctx, q, &c, "SELECT "+pixColumns+" FROM pix_charges WHERE correlation_id = ? LIMIT 1", correlationID); err != nil {
		return nil, err
	}
	return &c, nil
}
