package model

import (
	"context"
	"database/sql"
	"time"

	infmysql "lotto-server/internal/infra/mysql"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const TableBets = "bets"

// Bet 对应 bets 表
// prize_credited_at 是防止重复派奖的唯一闸门：当且仅当奖金入账已提交时非空
type Bet struct {
	ID              int64           `db:"id"`                // 注单ID（snowflake）
	UserID          int64           `db:"user_id"`           // 用户ID
	Lottery         string          `db:"lottery"`           // 彩种名称（原始）
	TimeSlotCode    string          `db:"time_slot_code"`    // 开奖时段（原始）
	DrawDate        string          `db:"draw_date"`         // 开奖日期
	WagerLines      string          `db:"wager_lines"`       // 投注明细（版本化 JSON）
	Total           decimal.Decimal `db:"total"`             // 总投注额
	Status          string          `db:"status"`            // 状态
	Prize           decimal.Decimal `db:"prize"`             // 奖金
	PrizeCreditedAt sql.NullInt64   `db:"prize_credited_at"` // 派奖入账时间
	ResultID        sql.NullInt64   `db:"result_id"`         // 关联开奖结果
	SettledAt       sql.NullInt64   `db:"settled_at"`        // 结算时间
	TraceID         string          `db:"trace_id"`
	CreatedAt       int64           `db:"created_at"`
	UpdatedAt       int64           `db:"updated_at"`
}

const betColumns = "id, user_id, lottery, time_slot_code, draw_date, wager_lines, total, status, prize, prize_credited_at, result_id, settled_at, trace_id, created_at, updated_at"

// Insert 新增注单（prize=0，结算字段为空）
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	if b.CreatedAt == 0 {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	sqlStr := "INSERT INTO bets (id, user_id, lottery, time_slot_code, draw_date, wager_lines, total, status, prize, trace_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{b.ID, b.UserID, b.Lottery, b.TimeSlotCode, b.DrawDate, b.WagerLines,
		b.Total.StringFixed(2), b.Status, b.Prize.StringFixed(2), b.TraceID, b.CreatedAt, b.UpdatedAt}
	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetBet 按 ID 读取注单
func GetBet(ctx context.Context, q sqlx.QueryerContext, id int64) (*Bet, error) {
	var b Bet
	if err := sqlx.GetContext(ctx, q, &b, "SELECT "+betColumns+" FROM bets WHERE id = ? LIMIT 1", id); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListOpenBets 按 ID 游标分页扫描 status=open 的注单
func ListOpenBets(ctx context.Context, q sqlx.QueryerContext, afterID int64, limit int) ([]Bet, error) {
	sqlStr := "SELECT " + betColumns + " FROM bets WHERE status = ? AND id > ? ORDER BY id ASC LIMIT ?"
	var list []Bet
	if err := sqlx.SelectContext(ctx, q, &list, sqlStr, "open", afterID, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// ListUserBets 查询用户注单（按创建时间倒序）
func ListUserBets(ctx context.Context, q sqlx.QueryerContext, userID int64, limit, offset int) ([]Bet, error) {
	var list []Bet
	err := infmysql.SelectAllCtx(ctx, q, &list, infmysql.QueryArg{
		Table:  TableBets,
		Fields: infmysql.EnumFields(Bet{}),
		Ex:     []exp.Expression{g.C("user_id").Eq(userID)},
		Order:  []exp.OrderedExpression{g.C("created_at").Desc(), g.C("id").Desc()},
		Offset: uint(offset),
		Limit:  uint(limit),
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
