package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	"lotto-server/internal/auth"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// WebhookOutcome 回调处理结果（对渠道一律应答成功，结果仅用于日志与监控）
type WebhookOutcome string

const (
	WebhookCredited        WebhookOutcome = "credited"
	WebhookDuplicate       WebhookOutcome = "duplicate"        // (provider, eventId) 已处理
	WebhookIgnored         WebhookOutcome = "ignored"          // 非支付完成事件
	WebhookUnresolved      WebhookOutcome = "unresolved"       // 找不到充值单
	WebhookAlreadyCredited WebhookOutcome = "already_credited" // 充值单已入账
	WebhookRejected        WebhookOutcome = "rejected"         // 签名或报文无效
)

// WebhookInput 原始回调
type WebhookInput struct {
	Provider  string
	Signature string
	Body      []byte
}

// pixWebhookPayload 渠道回调报文（OpenPix 风格）
type pixWebhookPayload struct {
	Event   string `json:"event"`
	EventID string `json:"eventId"`
	ID      string `json:"id"`
	Charge  struct {
		Status        string `json:"status"`
		CorrelationID string `json:"correlationID"`
		TransactionID string `json:"transactionID"`
	} `json:"charge"`
	Pix struct {
		TransactionID string `json:"transactionID"`
		EndToEndID    string `json:"endToEndId"`
	} `json:"pix"`
}

func (p *pixWebhookPayload) transactionID() string {
	if p.Charge.TransactionID != "" {
		return p.Charge.TransactionID
	}
	return p.Pix.TransactionID
}

// eventKey 渠道事件唯一标识：eventId → id → event:交易号/correlation
func (p *pixWebhookPayload) eventKey() string {
	switch {
	case p.EventID != "":
		return p.EventID
	case p.ID != "":
		return p.ID
	}
	ref := p.transactionID()
	if ref == "" {
		ref = p.Charge.CorrelationID
	}
	if ref == "" {
		return ""
	}
	return p.Event + ":" + ref
}

// paid 是否为支付完成事件
func (p *pixWebhookPayload) paid() bool {
	ev := strings.ToUpper(p.Event)
	if strings.Contains(ev, "COMPLETED") || strings.Contains(ev, "PAID") {
		return true
	}
	switch strings.ToUpper(p.Charge.Status) {
	case "COMPLETED", "PAID", "CONFIRMED":
		return true
	}
	return false
}

type WebhookService interface {
	// HandlePixWebhook 验签 → 事件去重 → 定位充值单 → 条件入账，全部在一个事务内
	HandlePixWebhook(ctx context.Context, in WebhookInput) (WebhookOutcome, error)
}

type webhookService struct {
	env     *Env
	secrets func(provider string) string
}

func NewWebhookService(env *Env, secrets func(provider string) string) WebhookService {
	return &webhookService{env: env, secrets: secrets}
}

func (s *webhookService) HandlePixWebhook(ctx context.Context, in WebhookInput) (out WebhookOutcome, err error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	defer func() { metrics.RecordWebhook(provider, string(out)) }()

	if err := auth.VerifyWebhookSignature(s.secrets(provider), in.Body, in.Signature); err != nil {
		logger.WarnCtx(ctx, "webhook signature rejected", zap.String("provider", provider), zap.Error(err))
		return WebhookRejected, ErrInvalidSignature
	}
	var p pixWebhookPayload
	if err := json.Unmarshal(in.Body, &p); err != nil {
		logger.WarnCtx(ctx, "webhook payload malformed", zap.String("provider", provider), zap.Error(err))
		return WebhookRejected, invalidInput("malformed webhook payload")
	}
	eventID := p.eventKey()
	if eventID == "" {
		logger.WarnCtx(ctx, "webhook without event id", zap.String("provider", provider), zap.String("event", p.Event))
		return WebhookRejected, invalidInput("webhook event id missing")
	}

	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("event_id", eventID),
		zap.String("event", p.Event),
		zap.String("correlation_id", p.Charge.CorrelationID),
	}

	err = s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		now := s.env.now()
		evt := &model.WebhookEvent{
			Provider:   provider,
			EventID:    eventID,
			EventType:  p.Event,
			Payload:    string(in.Body),
			ReceivedAt: now.UnixMilli(),
		}
		evtID, err := evt.Insert(ctx, tx)
		if err != nil {
			if infmysql.IsDuplicateKey(err) {
				out = WebhookDuplicate
				return nil
			}
			return internal("insert webhook event", err)
		}
		if !p.paid() {
			out = WebhookIgnored
			return nil
		}

		charge, err := model.FindPixCharge(ctx, tx, p.transactionID(), p.Charge.CorrelationID)
		if err != nil {
			if helper.IsNoRows(err) {
				out = WebhookUnresolved
				return nil
			}
			return internal("find pix charge", err)
		}
		if err := model.LinkWebhookEventCharge(ctx, tx, evtID, charge.ID); err != nil {
			return internal("link webhook event", err)
		}

		set := g.Record{
			"status":     model.PixStatusPaid,
			"credited":   1,
			"paid_at":    now.UnixMilli(),
			"updated_at": now.UnixMilli(),
		}
		if txid := p.transactionID(); txid != "" {
			set["transaction_id"] = txid
		}
		swapped, err := infmysql.CAS{
			Table: model.TablePixCharges,
			Set:   set,
			Guard: []exp.Expression{g.C("id").Eq(charge.ID), g.C("credited").Eq(0)},
		}.Exec(ctx, tx)
		if err != nil {
			return internal("mark pix charge paid", err)
		}
		if !swapped {
			out = WebhookAlreadyCredited
			return nil
		}

		ref := strconv.FormatInt(charge.ID, 10)
		if err := Credit(ctx, tx, LedgerEntry{
			UserID:      charge.UserID,
			Type:        model.TxTypePixDeposit,
			Amount:      charge.Amount,
			Description: "pix deposit " + charge.CorrelationID,
			RefID:       ref,
			TraceID:     logger.GetTraceID(ctx),
			At:          now,
		}, AuditBestEffort); err != nil {
			return err
		}
		payload := map[string]any{
			"event":          model.TopicPixCredited,
			"charge_id":      ref,
			"user_id":        charge.UserID,
			"amount":         charge.Amount.StringFixed(2),
			"correlation_id": charge.CorrelationID,
			"provider":       provider,
		}
		if err := model.CreateOutbox(ctx, tx, model.TopicPixCredited, ref, payload); err != nil {
			return internal("insert outbox", err)
		}
		out = WebhookCredited
		fields = append(fields, zap.Int64("user_id", charge.UserID), zap.String("amount", charge.Amount.StringFixed(2)))
		return nil
	})
	if err != nil {
		logger.ErrorCtx(ctx, "webhook processing failed", append(fields, zap.Error(err))...)
		return WebhookRejected, err
	}
	logger.InfoCtx(ctx, "webhook processed", append(fields, zap.String("outcome", string(out)))...)
	return out, nil
}
