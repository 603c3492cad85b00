package model

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// WebhookEvent 对应 webhook_events 表
// 唯一键: (provider, event_id)；重复投递在插入时即被识别
type WebhookEvent struct {
	ID         int64         `db:"id"`
	Provider   string        `db:"provider"`
	EventID    string        `db:"event_id"`
	EventType  string        `db:"event_type"`
	ChargeID   sql.NullInt64 `db:"charge_id"` // 关联的充值单（便于排查）
	Payload    string        `db:"payload"`
	ReceivedAt int64         `db:"received_at"`
}

// Insert 插入回调事件，返回自增 ID
func (e *WebhookEvent) Insert(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	sqlStr := "INSERT INTO webhook_events (provider, event_id, event_type, payload, received_at) VALUES (?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, e.Provider, e.EventID, e.EventType, e.Payload, e.ReceivedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LinkWebhookEventCharge 关联回调事件与充值单
func LinkWebhookEventCharge(ctx context.Context, exec sqlx.ExtContext, id, chargeID int64) error {
	_, err := exec.ExecContext(ctx, "UPDATE webhook_events SET charge_id = ? WHERE id = ?", chargeID, id)
	return err
}

// DeleteWebhookEventsBefore 清理过期回调事件（充值单 credited 标记仍然兜底防重）
func DeleteWebhookEventsBefore(ctx context.Context, exec sqlx.ExtContext, beforeMs int64) (int64, error) {
	res, err := exec.ExecContext(ctx, "DELETE FROM webhook_events WHERE received_at < ?", beforeMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
