package worker

import (
	"context"
	"encoding/json"
	"time"

	"lotto-server/common/logger"
	"lotto-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Publisher outbox 事件投递（RocketMQ / Kafka / 日志兜底）
type Publisher interface {
	Publish(ctx context.Context, event, key string, body []byte) error
}

// LogPublisher MQ 未启用时使用：仅记录日志，事件照常标记为已发送
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event, key string, body []byte) error {
	logger.Debug("[mq disabled] drop message", zap.String("event", event), zap.String("key", key))
	return nil
}

// OutboxDispatcher 轮询 outbox 表并投递
type OutboxDispatcher struct {
	DB        *sqlx.DB
	Pub       Publisher
	Interval  time.Duration
	BatchSize int
}

// Run 启动 Outbox 分发循环，ctx 取消时退出
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("outbox: dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchOnce 投递一批待发送记录，返回成功条数
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = 100
	}
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rows, err := model.ListOutboxPending(c, d.DB, batch)
	cancel()
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, r := range rows {
		pc, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := d.Pub.Publish(pc, r.Topic, r.BizKey, []byte(r.Payload))
		cancel()
		if err != nil {
			if merr := model.MarkOutboxFailed(ctx, d.DB, r.ID, truncateErr(err)); merr != nil {
				logger.Warn("outbox: mark failed failed", zap.Int64("id", r.ID), zap.Error(merr))
			}
			continue
		}
		if err := model.MarkOutboxSent(ctx, d.DB, r.ID); err != nil {
			logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
