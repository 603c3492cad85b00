package worker

import (
	"context"

	"lotto-server/common/logger"
	"lotto-server/internal/service"

	"go.uber.org/zap"
)

// Source 开奖推送来源（RocketMQ SimpleConsumer / Kafka 消费组）
// handler 返回 nil 时确认消息
type Source interface {
	Run(ctx context.Context, handler func(ctx context.Context, messageID string, body []byte) error) error
}

// InboxConsumer 消费 result_published 并触发结算
type InboxConsumer struct {
	Source  Source
	Results service.ResultService
}

func (c *InboxConsumer) Run(ctx context.Context) error {
	return c.Source.Run(ctx, c.Handle)
}

// Handle 报文非法时直接确认丢弃，其余错误交给来源重投
func (c *InboxConsumer) Handle(ctx context.Context, messageID string, body []byte) error {
	sum, err := c.Results.ConsumeResultPublished(ctx, messageID, body)
	if err != nil {
		if service.KindOf(err) == service.KindInvalidInput {
			logger.Warn("[inbox] drop malformed message", zap.String("id", messageID), zap.Error(err))
			return nil
		}
		return err
	}
	if sum != nil {
		logger.Info("[inbox] result settled",
			zap.String("id", messageID),
			zap.Int64("result_id", sum.ResultID),
			zap.Int("processed", sum.Processed),
			zap.Int("wins", sum.Wins),
			zap.Int("errors", len(sum.Errors)))
	}
	return nil
}
