package rocketmq

import (
	"context"
	"strings"
	"time"

	"lotto-server/common/logger"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options RocketMQ v5 接入参数
type Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Topic         string            // outbox 事件默认投递的主题，事件类型放在 Tag
	EventTopics   map[string]string // 按事件类型改投的主题，如 result_published → 开奖推送主题
	ConsumerGroup string
	ConsumeTopic  string // 开奖推送主题
	ConsumeTag    string // 只消费该 Tag 的消息，为空时订阅全部
}

// topicFor 事件类型对应的投递主题
func (o Options) topicFor(event string) string {
	if t := topicName(o.EventTopics[event]); t != "" {
		return t
	}
	return topicName(o.Topic)
}

// topics Producer 需要预取路由的全部主题
func (o Options) topics() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append([]string{o.Topic}, mapValues(o.EventTopics)...) {
		if t = topicName(t); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// subscription 开奖推送订阅表达式，同一主题承载多种事件时按 Tag 过滤
func (o Options) subscription() map[string]*rmq.FilterExpression {
	filter := rmq.SUB_ALL
	if tag := strings.TrimSpace(o.ConsumeTag); tag != "" {
		filter = rmq.NewFilterExpression(tag)
	}
	return map[string]*rmq.FilterExpression{topicName(o.ConsumeTopic): filter}
}

// Enabled 配置完整时才启用（缺少凭证时底层 SDK 在 Sign 阶段会空指针崩溃）
func (o Options) Enabled() bool {
	return o.Endpoint != "" && strings.TrimSpace(o.AccessKey) != "" && strings.TrimSpace(o.SecretKey) != ""
}

func (o Options) config() *rmq.Config {
	return &rmq.Config{
		Endpoint:      sanitizeEndpoint(o.Endpoint),
		ConsumerGroup: o.ConsumerGroup,
		Credentials:   &credentials.SessionCredentials{AccessKey: o.AccessKey, AccessSecret: o.SecretKey},
	}
}

// sanitizeEndpoint 去除 scheme，多个地址时取第一个
func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

// topicName RocketMQ 主题不允许出现 '.'
func topicName(t string) string { return strings.TrimSpace(strings.ReplaceAll(t, ".", "_")) }

// Publisher 基于 RocketMQ v5 Producer 的 outbox 投递
type Publisher struct {
	p    rmq.Producer
	opts Options
}

// NewPublisher 创建并启动 Producer；启动超过 startTimeout 视为失败
func NewPublisher(opts Options, startTimeout time.Duration) (*Publisher, error) {
	rmq.ResetLogger()
	if !opts.Enabled() {
		return nil, errors.New("rocketmq: endpoint or credentials missing")
	}
	topics := opts.topics()
	p, err := rmq.NewProducer(opts.config(), rmq.WithTopics(topics...))
	if err != nil {
		return nil, errors.Wrap(err, "rocketmq: producer init")
	}

	startDone := make(chan error, 1)
	go func() { startDone <- p.Start() }()
	select {
	case err := <-startDone:
		if err != nil {
			return nil, errors.Wrap(err, "rocketmq: producer start")
		}
	case <-time.After(startTimeout):
		go func() { _ = p.GracefulStop() }()
		return nil, errors.New("rocketmq: producer start timeout")
	}
	logger.Info("rocketmq producer enabled", zap.String("endpoint", sanitizeEndpoint(opts.Endpoint)), zap.Strings("topics", topics))
	return &Publisher{p: p, opts: opts}, nil
}

// Publish 事件类型作为 Tag，业务键作为 Keys，便于按注单号检索
func (r *Publisher) Publish(ctx context.Context, event, key string, body []byte) error {
	msg := &rmq.Message{Topic: r.opts.topicFor(event), Body: body}
	msg.SetTag(event)
	if key != "" {
		msg.SetKeys(key)
	}
	_, err := r.p.Send(ctx, msg)
	return err
}

func (r *Publisher) Close() error { return r.p.GracefulStop() }

// Handler 消费回调；返回 nil 时 Ack，否则等待不可见时间后重投
type Handler func(ctx context.Context, messageID string, body []byte) error

// Consumer 基于 SimpleConsumer 的拉取消费
type Consumer struct {
	sc rmq.SimpleConsumer
}

const (
	awaitDuration     = 5 * time.Second
	maxMessageNum     = int32(16)
	invisibleDuration = 20 * time.Second
)

// NewConsumer 启动 SimpleConsumer（带重试，避免容器刚启动未就绪导致一次性失败）
func NewConsumer(ctx context.Context, opts Options) (*Consumer, error) {
	rmq.ResetLogger()
	if !opts.Enabled() || opts.ConsumerGroup == "" || opts.ConsumeTopic == "" {
		return nil, errors.New("rocketmq: consumer group or topic missing")
	}
	subs := opts.subscription()

	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ {
		sc, err = rmq.NewSimpleConsumer(opts.config(),
			rmq.WithAwaitDuration(awaitDuration),
			rmq.WithSubscriptionExpressions(subs),
		)
		if err == nil {
			if err = sc.Start(); err == nil {
				return &Consumer{sc: sc}, nil
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return nil, errors.Wrap(err, "rocketmq: start simple consumer")
}

// Run 循环拉取直到 ctx 取消
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.sc.GracefulStop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		mvs, err := c.sc.Receive(ctx, maxMessageNum, invisibleDuration)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Debug("[mq] receive", zap.Error(err))
			continue
		}
		for _, mv := range mvs {
			id := mv.GetMessageId()
			if err := h(ctx, id, mv.GetBody()); err != nil {
				logger.Warn("[mq] handle failed, wait for redelivery", zap.String("id", id), zap.Error(err))
				continue
			}
			if err := c.sc.Ack(ctx, mv); err != nil {
				logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
			}
		}
	}
}
