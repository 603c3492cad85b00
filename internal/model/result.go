package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Result 对应 results 表（开奖结果）
// numbers: JSON 字符串数组，第一个为头奖（cabeça），其余为 2~5 名
type Result struct {
	ID           int64  `db:"id"`
	Lottery      string `db:"lottery"`
	TimeSlotCode string `db:"time_slot_code"`
	DrawDate     string `db:"draw_date"`
	Numbers      string `db:"numbers"`
	CreatedBy    string `db:"created_by"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

// Insert 新增开奖结果，返回自增 ID
func (r *Result) Insert(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO results (lottery, time_slot_code, draw_date, numbers, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, r.Lottery, r.TimeSlotCode, r.DrawDate, r.Numbers, r.CreatedBy, now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	return id, nil
}

// GetResult 按 ID 读取开奖结果
func GetResult(ctx context.Context, q sqlx.QueryerContext, id int64) (*Result, error) {
	sqlStr := "SELECT id, lottery, time_slot_code, draw_date, numbers, created_by, created_at, updated_at FROM results WHERE id = ? LIMIT 1"
	var r Result
	if err := sqlx.GetContext(ctx, q, &r, sqlStr, id); err != nil {
		return nil, err
	}
	return &r, nil
}
