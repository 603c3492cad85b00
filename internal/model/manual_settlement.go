package model

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ManualSettlement 对应 manual_settlements 表（人工结算审计，只增不改）
// 唯一键: (bet_id, action)；插入冲突即表示同一动作已执行过
type ManualSettlement struct {
	ID        int64           `db:"id"`
	BetID     int64           `db:"bet_id"`
	ResultID  int64           `db:"result_id"`
	Action    string          `db:"action"`
	Reason    string          `db:"reason"`
	Prize     decimal.Decimal `db:"prize"`
	Actor     string          `db:"actor"`
	CreatedAt int64           `db:"created_at"`
}

// Insert 插入审计记录
func (m *ManualSettlement) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	sqlStr := "INSERT INTO manual_settlements (bet_id, result_id, action, reason, prize, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, m.BetID, m.ResultID, m.Action, m.Reason, m.Prize.StringFixed(2), m.Actor, m.CreatedAt)
	return err
}
