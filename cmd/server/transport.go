package main

import (
	"context"
	"time"

	"lotto-server/common/logger"
	"lotto-server/internal/config"
	"lotto-server/internal/infra/kafka"
	"lotto-server/internal/infra/rocketmq"
	"lotto-server/internal/service"
	"lotto-server/internal/worker"

	"go.uber.org/zap"
)

func rocketmqOptions(cfg *config.Config) rocketmq.Options {
	return rocketmq.Options{
		Endpoint:      cfg.RocketMQ.Endpoint,
		AccessKey:     cfg.RocketMQ.AccessKey,
		SecretKey:     cfg.RocketMQ.SecretKey,
		Topic:         cfg.RocketMQ.TopicEvents,
		EventTopics:   resultRoutes(cfg.RocketMQ.TopicResults),
		ConsumerGroup: cfg.RocketMQ.ConsumerGroup,
		ConsumeTopic:  cfg.RocketMQ.TopicResults,
		ConsumeTag:    service.TopicResultPublished,
	}
}

// resultRoutes result_published 投递到开奖推送主题，由 inbox 消费者结算
func resultRoutes(resultsTopic string) map[string]string {
	if resultsTopic == "" {
		return nil
	}
	return map[string]string{service.TopicResultPublished: resultsTopic}
}

// newPublisher 依次尝试 RocketMQ、Kafka，均未配置时只记录日志
func newPublisher(cfg *config.Config) (worker.Publisher, func()) {
	if opts := rocketmqOptions(cfg); opts.Enabled() {
		p, err := rocketmq.NewPublisher(opts, 2*time.Second)
		if err == nil {
			return p, func() { _ = p.Close() }
		}
		logger.Warn("rocketmq publisher unavailable", zap.Error(err))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, resultRoutes(cfg.Kafka.ResultsTopic))
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		return p, func() { _ = p.Close() }
	}
	logger.Warn("mq not configured, outbox events are only logged")
	return worker.LogPublisher{}, func() {}
}

// newResultSource 开奖推送来源，未配置时返回 nil（由 auto_settle 或管理接口触发结算）
func newResultSource(ctx context.Context, cfg *config.Config) worker.Source {
	if opts := rocketmqOptions(cfg); opts.Enabled() && opts.ConsumerGroup != "" && opts.ConsumeTopic != "" {
		c, err := rocketmq.NewConsumer(ctx, opts)
		if err == nil {
			return rocketmqSource{c}
		}
		logger.Warn("rocketmq consumer unavailable", zap.Error(err))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ResultsTopic != "" && cfg.Kafka.GroupID != "" {
		return kafkaSource{kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic, cfg.Kafka.GroupID, service.TopicResultPublished)}
	}
	return nil
}

type rocketmqSource struct{ c *rocketmq.Consumer }

func (s rocketmqSource) Run(ctx context.Context, h func(ctx context.Context, id string, body []byte) error) error {
	return s.c.Run(ctx, h)
}

type kafkaSource struct{ c *kafka.Consumer }

func (s kafkaSource) Run(ctx context.Context, h func(ctx context.Context, id string, body []byte) error) error {
	return s.c.Run(ctx, h)
}
