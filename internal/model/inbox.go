package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inbox 对应 inbox 表（消费幂等落库表）
// 唯一键: (message_id, topic)
type Inbox struct {
	ID        int64  `db:"id"`
	MessageID string `db:"message_id"`
	Topic     string `db:"topic"`
	Payload   string `db:"payload"`
	CreatedAt int64  `db:"created_at"`
}

// Insert 写入一条消费记录；重复消息返回唯一键冲突错误，由调用方识别
func (i *Inbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	sqlStr := "INSERT INTO inbox (message_id, topic, payload, created_at) VALUES (?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, i.MessageID, i.Topic, i.Payload, time.Now().UnixMilli())
	return err
}

// DeleteInbox 删除消费记录，用于处理失败后允许消息重投
func DeleteInbox(ctx context.Context, exec sqlx.ExtContext, messageID, topic string) error {
	_, err := exec.ExecContext(ctx, "DELETE FROM inbox WHERE message_id = ? AND topic = ?", messageID, topic)
	return err
}
