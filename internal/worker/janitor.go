package worker

import (
	"context"
	"time"

	"lotto-server/common/logger"
	"lotto-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Janitor 定期清理过期的幂等键与回调事件；保留时长为 0 表示不清理
// 充值单的 credited 标记不受影响，回调事件被清理后仍不会重复入账
type Janitor struct {
	DB               *sqlx.DB
	Interval         time.Duration
	IdemRetention    func() time.Duration
	WebhookRetention func() time.Duration
	Now              func() time.Time
}

func (j *Janitor) Run(ctx context.Context) error {
	interval := j.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.SweepOnce(ctx)
		}
	}
}

// SweepOnce 执行一轮清理，返回删除的幂等键与回调事件条数
func (j *Janitor) SweepOnce(ctx context.Context) (idem, events int64) {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}
	if d := retention(j.IdemRetention); d > 0 {
		n, err := model.DeleteIdempotencyKeysBefore(ctx, j.DB, now.Add(-d).UnixMilli())
		if err != nil {
			logger.Warn("janitor: purge idempotency keys failed", zap.Error(err))
		}
		idem = n
	}
	if d := retention(j.WebhookRetention); d > 0 {
		n, err := model.DeleteWebhookEventsBefore(ctx, j.DB, now.Add(-d).UnixMilli())
		if err != nil {
			logger.Warn("janitor: purge webhook events failed", zap.Error(err))
		}
		events = n
	}
	if idem > 0 || events > 0 {
		logger.Info("janitor: purged", zap.Int64("idempotency_keys", idem), zap.Int64("webhook_events", events))
	}
	return idem, events
}

func retention(f func() time.Duration) time.Duration {
	if f == nil {
		return 0
	}
	return f()
}
