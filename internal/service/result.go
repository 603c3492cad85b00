package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TopicResultPublished 外部开奖推送消息
const TopicResultPublished = "result_published"

const maxDrawnNumbers = 5

// ResultInput 发布开奖结果
type ResultInput struct {
	Lottery      string
	TimeSlotCode string
	DrawDate     string
	Numbers      []string // 第一个为头奖
	CreatedBy    string
}

// PublishOutput 发布结果；开启自动结算时附带结算汇总
type PublishOutput struct {
	ResultID int64          `json:"result_id"`
	Numbers  []string       `json:"numbers"`
	Settled  *SettleSummary `json:"settled,omitempty"`
}

// ResultPublishedMessage MQ 开奖推送消息体
type ResultPublishedMessage struct {
	ResultID int64 `json:"result_id"`
}

type ResultService interface {
	PublishResult(ctx context.Context, in ResultInput) (*PublishOutput, error)
	// ConsumeResultPublished 消费开奖推送；同一消息只结算一次
	ConsumeResultPublished(ctx context.Context, messageID string, body []byte) (*SettleSummary, error)
}

type resultService struct {
	env        *Env
	settlement SettlementService
	autoSettle func() bool
}

// NewResultService autoSettle 为空视为关闭
func NewResultService(env *Env, settlement SettlementService, autoSettle func() bool) ResultService {
	if autoSettle == nil {
		autoSettle = func() bool { return false }
	}
	return &resultService{env: env, settlement: settlement, autoSettle: autoSettle}
}

func (s *resultService) PublishResult(ctx context.Context, in ResultInput) (*PublishOutput, error) {
	lottery := strings.TrimSpace(in.Lottery)
	slot := strings.TrimSpace(in.TimeSlotCode)
	if lottery == "" || slot == "" {
		return nil, invalidInput("lottery and timeSlotCode are required")
	}
	date := NormalizeDrawDate(in.DrawDate)
	if !ValidDrawDate(date) {
		return nil, invalidInput("invalid drawDate %q", in.DrawDate)
	}
	if len(in.Numbers) == 0 || len(in.Numbers) > maxDrawnNumbers {
		return nil, invalidInput("numbers must contain 1 to %d entries", maxDrawnNumbers)
	}
	numbers := make([]string, 0, len(in.Numbers))
	for i, n := range in.Numbers {
		d := helper.DigitsOnly(n)
		if d == "" {
			return nil, invalidInput("numbers[%d] must contain digits", i)
		}
		numbers = append(numbers, d)
	}
	raw, err := json.Marshal(numbers)
	if err != nil {
		return nil, internal("encode numbers", err)
	}

	res := &model.Result{
		Lottery:      lottery,
		TimeSlotCode: slot,
		DrawDate:     date,
		Numbers:      string(raw),
		CreatedBy:    in.CreatedBy,
	}
	if err := s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := res.Insert(ctx, tx)
		if err != nil {
			return err
		}
		// 通知下游；未开启自动结算时由 inbox 消费触发结算
		return model.CreateOutbox(ctx, tx, TopicResultPublished, strconv.FormatInt(id, 10), ResultPublishedMessage{ResultID: id})
	}); err != nil {
		return nil, internal("insert result", err)
	}
	logger.InfoCtx(ctx, "result published",
		zap.Int64("result_id", res.ID),
		zap.String("lottery", lottery),
		zap.String("slot", slot),
		zap.String("date", date),
		zap.Strings("numbers", numbers))

	out := &PublishOutput{ResultID: res.ID, Numbers: numbers}
	if s.autoSettle() {
		sum, err := s.settlement.SettleResult(ctx, res.ID, TriggerAuto)
		if err != nil {
			return nil, err
		}
		out.Settled = sum
	}
	return out, nil
}

func (s *resultService) ConsumeResultPublished(ctx context.Context, messageID string, body []byte) (*SettleSummary, error) {
	var msg ResultPublishedMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.ResultID <= 0 {
		return nil, invalidInput("malformed %s message", TopicResultPublished)
	}
	in := &model.Inbox{MessageID: messageID, Topic: TopicResultPublished, Payload: string(body)}
	if err := in.Insert(ctx, s.env.DB); err != nil {
		if infmysql.IsDuplicateKey(err) {
			logger.InfoCtx(ctx, "result message already consumed", zap.String("message_id", messageID))
			return nil, nil
		}
		return nil, internal("insert inbox", err)
	}
	sum, err := s.settlement.SettleResult(ctx, msg.ResultID, TriggerMQ)
	if err != nil {
		// 结果查询失败时撤销消费记录，允许重投后再次结算
		if derr := model.DeleteInbox(context.WithoutCancel(ctx), s.env.DB, messageID, TopicResultPublished); derr != nil {
			logger.ErrorCtx(ctx, "release inbox failed", zap.String("message_id", messageID), zap.Error(derr))
		}
		return nil, err
	}
	return sum, nil
}

// DecodeNumbers 解析开奖号码 JSON 数组，失败返回空列表
func DecodeNumbers(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return []string{}
	}
	return out
}
