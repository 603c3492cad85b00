package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// IdempotencyKey 对应 idempotency_keys 表
// 唯一键: (user_id, idem_key)；插入冲突即为重复请求信号
type IdempotencyKey struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	IdemKey     string `db:"idem_key"`
	Purpose     string `db:"purpose"`
	Fingerprint string `db:"fingerprint"` // 请求指纹（sha256 hex）
	Ref         string `db:"ref"`         // 业务引用（如注单号）
	Snapshot    string `db:"snapshot"`    // 首次结果快照(JSON)
	CreatedAt   int64  `db:"created_at"`
}

// Insert 插入幂等键（快照为空，业务完成后在同一事务内补写）
func (k *IdempotencyKey) Insert(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	if k.CreatedAt == 0 {
		k.CreatedAt = time.Now().UnixMilli()
	}
	sqlStr := "INSERT INTO idempotency_keys (user_id, idem_key, purpose, fingerprint, ref, snapshot, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, k.UserID, k.IdemKey, k.Purpose, k.Fingerprint, k.Ref, k.Snapshot, k.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CompleteIdempotencyKey 写入业务引用与结果快照
func CompleteIdempotencyKey(ctx context.Context, exec sqlx.ExtContext, id int64, ref, snapshot string) error {
	_, err := exec.ExecContext(ctx, "UPDATE idempotency_keys SET ref = ?, snapshot = ? WHERE id = ?", ref, snapshot, id)
	return err
}

// GetIdempotencyKey 按 (user_id, idem_key) 查询
func GetIdempotencyKey(ctx context.Context, q sqlx.QueryerContext, userID int64, key string) (*IdempotencyKey, error) {
	sqlStr := "SELECT id, user_id, idem_key, purpose, fingerprint, ref, snapshot, created_at FROM idempotency_keys WHERE user_id = ? AND idem_key = ? LIMIT 1"
	var k IdempotencyKey
	if err := sqlx.GetContext(ctx, q, &k, sqlStr, userID, key); err != nil {
		return nil, err
	}
	return &k, nil
}

// DeleteIdempotencyKeysBefore 清理过期幂等键
func DeleteIdempotencyKeysBefore(ctx context.Context, exec sqlx.ExtContext, beforeMs int64) (int64, error) {
	res, err := exec.ExecContext(ctx, "DELETE FROM idempotency_keys WHERE created_at < ?", beforeMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
