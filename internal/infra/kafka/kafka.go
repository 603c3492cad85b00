package kafka

import (
	"context"
	"fmt"
	"time"

	"lotto-server/common/logger"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventHeader 事件类型所在的消息头
const EventHeader = "event"

// Publisher 基于 kafka-go Writer 的 outbox 投递
// Writer 不固定主题，按事件类型逐条指定
type Publisher struct {
	w      *kafka.Writer
	topic  string
	routes map[string]string
}

// NewPublisher routes 为按事件类型改投的主题，未命中的事件投递到 topic
func NewPublisher(brokers []string, topic string, routes map[string]string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{}, // 同一注单的事件落在同一分区，保持顺序
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		routes: routes,
	}
}

func (p *Publisher) topicFor(event string) string {
	if t := p.routes[event]; t != "" {
		return t
	}
	return p.topic
}

// Publish 事件类型放在 header，业务键作为消息 key
func (p *Publisher) Publish(ctx context.Context, event, key string, body []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicFor(event),
		Key:     []byte(key),
		Value:   body,
		Headers: []kafka.Header{{Key: EventHeader, Value: []byte(event)}},
		Time:    time.Now(),
	})
}

func (p *Publisher) Close() error { return p.w.Close() }

// Handler 消费回调；返回 nil 时提交位点
type Handler func(ctx context.Context, messageID string, body []byte) error

// Consumer 消费组读取开奖推送
type Consumer struct {
	r          *kafka.Reader
	event      string
	maxRetries int
}

// NewConsumer event 非空时只处理该事件类型，其它事件直接提交跳过
func NewConsumer(brokers []string, topic, groupID, event string) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		event:      event,
		maxRetries: 3,
	}
}

// Accepts 没有事件头的消息（外部推送）一律处理
func Accepts(m kafka.Message, event string) bool {
	if event == "" {
		return true
	}
	for _, h := range m.Headers {
		if h.Key == EventHeader {
			return string(h.Value) == event
		}
	}
	return true
}

// MessageID 以 topic/partition/offset 作为消息唯一标识
func MessageID(m kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

// Run 逐条处理；失败重试 maxRetries 次后记录并提交，避免阻塞分区
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.r.Close()
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "kafka: fetch message")
		}
		id := MessageID(m)
		if !Accepts(m, c.event) {
			if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				logger.Warn("[kafka] commit failed", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		for attempt := 1; ; attempt++ {
			err = h(ctx, id, m.Value)
			if err == nil || attempt >= c.maxRetries || ctx.Err() != nil {
				break
			}
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Error("[kafka] message dropped after retries", zap.String("id", id), zap.Error(err))
		}
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Warn("[kafka] commit failed", zap.String("id", id), zap.Error(err))
		}
	}
}
