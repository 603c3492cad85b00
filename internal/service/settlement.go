package service

import (
	"context"
	"strconv"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// 结算触发来源（metrics 标签）
const (
	TriggerAPI     = "api"
	TriggerAuto    = "auto"
	TriggerMQ      = "mq"
	TriggerRecheck = "recheck"
	TriggerManual  = "manual"
)

const defaultSettlePageSize = 200

// 单注结算结果
const (
	OutcomeWon     = "won"
	OutcomeNotWon  = "nao_premiado"
	OutcomeSkipped = "skipped" // 已被其他路径结算
	OutcomeError   = "error"
)

// BetOutcome 单注结算明细
type BetOutcome struct {
	BetID   string `json:"bet_id"`
	Outcome string `json:"outcome"`
	Prize   string `json:"prize"`
	Error   string `json:"error,omitempty"`
}

// SettleSummary 批量结算汇总；单注失败只记录，不中断批次
type SettleSummary struct {
	ResultID  int64        `json:"result_id"`
	Scanned   int          `json:"scanned"`
	Processed int          `json:"processed"`
	Wins      int          `json:"wins"`
	Skipped   int          `json:"skipped"`
	Errors    []string     `json:"errors"`
	Outcomes  []BetOutcome `json:"outcomes"`
}

func (s *SettleSummary) add(o BetOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Outcome {
	case OutcomeWon:
		s.Processed++
		s.Wins++
	case OutcomeNotWon:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Errors = append(s.Errors, "bet "+o.BetID+": "+o.Error)
	}
}

type SettlementService interface {
	// SettleResult 用一条开奖结果结算所有匹配的 open 注单
	SettleResult(ctx context.Context, resultID int64, trigger string) (*SettleSummary, error)
	// Recheck 对单注按其关联结果（或指定结果）重新结算
	Recheck(ctx context.Context, betID, resultID int64) (*RecheckOutput, error)
	// PreviewCompare 试算单注对指定结果的中奖情况，不落库
	PreviewCompare(ctx context.Context, betID, resultID int64) (*CompareOutput, error)
	// ManualSettle 人工派奖/驳回
	ManualSettle(ctx context.Context, in ManualInput) (*ManualOutput, error)
}

type settlementService struct {
	env      *Env
	odds     OddsTable
	pageSize int
}

func NewSettlementService(env *Env, odds OddsTable, pageSize int) SettlementService {
	if odds == nil {
		odds = DefaultOdds()
	}
	if pageSize <= 0 {
		pageSize = defaultSettlePageSize
	}
	return &settlementService{env: env, odds: odds, pageSize: pageSize}
}

func (s *settlementService) SettleResult(ctx context.Context, resultID int64, trigger string) (*SettleSummary, error) {
	start := time.Now()
	defer metrics.RecordSettleRun(trigger, start)

	res, err := model.GetResult(ctx, s.env.DB, resultID)
	if err != nil {
		if helper.IsNoRows(err) {
			return nil, notFound("result")
		}
		return nil, internal("load result", err)
	}
	rkey := NormalizeDrawKey(res.Lottery, res.TimeSlotCode, res.DrawDate)
	numbers := DecodeNumbers(res.Numbers)

	logger.InfoCtx(ctx, "settle result",
		zap.Int64("result_id", res.ID),
		zap.String("trigger", trigger),
		zap.String("date", rkey.Date),
		zap.String("hour", rkey.Hour),
		zap.String("lottery", rkey.Lottery))

	summary := &SettleSummary{ResultID: res.ID, Errors: []string{}, Outcomes: []BetOutcome{}}
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, "aborted: "+err.Error())
			break
		}
		page, err := model.ListOpenBets(ctx, s.env.DB, afterID, s.pageSize)
		if err != nil {
			summary.Errors = append(summary.Errors, "scan open bets: "+err.Error())
			break
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		for i := range page {
			bet := &page[i]
			summary.Scanned++
			if !NormalizeDrawKey(bet.Lottery, bet.TimeSlotCode, bet.DrawDate).Matches(rkey) {
				continue
			}
			o := s.settleOne(ctx, bet, res.ID, numbers, trigger)
			metrics.RecordSettledBet(trigger, o.Outcome)
			summary.add(o)
		}
		if len(page) < s.pageSize {
			break
		}
	}

	logger.InfoCtx(ctx, "settle result done",
		zap.Int64("result_id", res.ID),
		zap.Int("scanned", summary.Scanned),
		zap.Int("processed", summary.Processed),
		zap.Int("wins", summary.Wins),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}

// settleOne 单注独立事务：open 且未派奖时才写入结算结果
func (s *settlementService) settleOne(ctx context.Context, bet *model.Bet, resultID int64, numbers []string, trigger string) BetOutcome {
	ref := strconv.FormatInt(bet.ID, 10)
	lines, ok := DecodeWagerLines(bet.WagerLines)
	if !ok {
		logger.WarnCtx(ctx, "wager lines unreadable, settling as empty", zap.String("bet_id", ref))
	}
	p := ComputePayout(lines, bet.Total, numbers, s.odds)
	evt := state.EvtLose
	if p.Win() {
		evt = state.EvtWin
	}
	target, err := state.NextBetStatus(state.BetOpen, evt)
	if err != nil {
		return BetOutcome{BetID: ref, Outcome: OutcomeError, Prize: "0.00", Error: err.Error()}
	}

	var swapped bool
	err = s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		swapped, err = s.commitOutcome(ctx, tx, outcomeCommit{
			bet:      bet,
			resultID: resultID,
			status:   target,
			prize:    p,
			trigger:  trigger,
			topic:    model.TopicBetSettled,
			guard:    []exp.Expression{g.C("status").Eq(state.BetOpen)},
		})
		return err
	})
	if err != nil {
		logger.ErrorCtx(ctx, "settle bet failed", zap.String("bet_id", ref), zap.Error(err))
		return BetOutcome{BetID: ref, Outcome: OutcomeError, Prize: "0.00", Error: err.Error()}
	}
	if !swapped {
		return BetOutcome{BetID: ref, Outcome: OutcomeSkipped, Prize: "0.00"}
	}
	return BetOutcome{BetID: ref, Outcome: target, Prize: p.Prize.StringFixed(2)}
}

// outcomeCommit 一次注单状态变更及其派奖
type outcomeCommit struct {
	bet      *model.Bet
	resultID int64
	status   string
	prize    Payout
	trigger  string
	topic    string
	guard    []exp.Expression // 在 id 与 prize_credited_at IS NULL 之外追加的状态守卫
	extra    map[string]any   // 附加到 outbox 消息体
}

// commitOutcome 条件更新注单；命中后若有奖金则在同一事务内入账并写流水（流水失败不回滚）
// 返回 false 表示守卫未命中（已被并发结算），此时未做任何写入
func (s *settlementService) commitOutcome(ctx context.Context, tx *sqlx.Tx, c outcomeCommit) (bool, error) {
	now := s.env.now()
	nowMs := now.UnixMilli()
	prize := c.prize.Prize
	set := g.Record{
		"status":     c.status,
		"prize":      infmysql.Money(prize.StringFixed(2)),
		"settled_at": nowMs,
		"result_id":  c.resultID,
		"updated_at": nowMs,
	}
	if prize.IsPositive() {
		set["prize_credited_at"] = nowMs
	}
	guard := append([]exp.Expression{
		g.C("id").Eq(c.bet.ID),
		g.C("prize_credited_at").IsNull(),
	}, c.guard...)

	swapped, err := infmysql.CAS{Table: model.TableBets, Set: set, Guard: guard}.Exec(ctx, tx)
	if err != nil {
		return false, internal("update bet", err)
	}
	if !swapped {
		return false, nil
	}

	ref := strconv.FormatInt(c.bet.ID, 10)
	if prize.IsPositive() {
		err := Credit(ctx, tx, LedgerEntry{
			UserID:      c.bet.UserID,
			Type:        model.TxTypePrize,
			Amount:      prize,
			Description: "prize for bet " + ref,
			RefID:       ref,
			TraceID:     logger.GetTraceID(ctx),
			At:          now,
		}, AuditBestEffort)
		if err != nil {
			return false, err
		}
	}

	payload := map[string]any{
		"event":     c.topic,
		"bet_id":    ref,
		"user_id":   c.bet.UserID,
		"result_id": c.resultID,
		"status":    c.status,
		"prize":     prize.StringFixed(2),
		"trigger":   c.trigger,
	}
	for k, v := range c.extra {
		payload[k] = v
	}
	if err := model.CreateOutbox(ctx, tx, c.topic, ref, payload); err != nil {
		return false, internal("insert outbox", err)
	}
	return true, nil
}

// loadBetAndResult 读取注单与开奖结果
func (s *settlementService) loadBetAndResult(ctx context.Context, betID, resultID int64) (*model.Bet, *model.Result, error) {
	bet, err := model.GetBet(ctx, s.env.DB, betID)
	if err != nil {
		if helper.IsNoRows(err) {
			return nil, nil, notFound("bet")
		}
		return nil, nil, internal("load bet", err)
	}
	if resultID <= 0 {
		if !bet.ResultID.Valid {
			return nil, nil, invalidInput("bet %d has no linked result, resultId is required", betID)
		}
		resultID = bet.ResultID.Int64
	}
	res, err := model.GetResult(ctx, s.env.DB, resultID)
	if err != nil {
		if helper.IsNoRows(err) {
			return nil, nil, notFound("result")
		}
		return nil, nil, internal("load result", err)
	}
	return bet, res, nil
}

func (s *settlementService) payoutOf(bet *model.Bet, res *model.Result) Payout {
	lines, _ := DecodeWagerLines(bet.WagerLines)
	return ComputePayout(lines, bet.Total, DecodeNumbers(res.Numbers), s.odds)
}
