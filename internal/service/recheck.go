package service

import (
	"context"
	"strconv"
	"time"

	"lotto-server/common/logger"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RecheckOutput 复核结果
type RecheckOutput struct {
	BetID    string `json:"bet_id"`
	ResultID int64  `json:"result_id"`
	Status   string `json:"status"`
	Prize    string `json:"prize"`
	Credited bool   `json:"credited"`
}

// Recheck 未派奖的注单可被复核一次：
// 守卫为 prize_credited_at IS NULL 且当前状态允许目标事件，
// 与并发复核或批量结算竞争时只有一方命中，其余返回 ErrAlreadySettled
func (s *settlementService) Recheck(ctx context.Context, betID, resultID int64) (*RecheckOutput, error) {
	start := time.Now()
	defer metrics.RecordSettleRun(TriggerRecheck, start)

	bet, res, err := s.loadBetAndResult(ctx, betID, resultID)
	if err != nil {
		return nil, err
	}
	return s.recheckBet(ctx, bet, res)
}

// recheckBet 基于已读取的注单快照复核；快照在提交前过期时由守卫拦截
func (s *settlementService) recheckBet(ctx context.Context, bet *model.Bet, res *model.Result) (*RecheckOutput, error) {
	ref := strconv.FormatInt(bet.ID, 10)
	if bet.PrizeCreditedAt.Valid {
		metrics.RecordSettledBet(TriggerRecheck, "conflict")
		return nil, ErrAlreadySettled
	}

	p := s.payoutOf(bet, res)
	evt := state.EvtLose
	if p.Win() {
		evt = state.EvtWin
	}
	target, err := state.NextBetStatus(bet.Status, evt)
	if err != nil {
		metrics.RecordSettledBet(TriggerRecheck, "conflict")
		return nil, ErrAlreadySettled
	}

	var swapped bool
	err = s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		swapped, err = s.commitOutcome(ctx, tx, outcomeCommit{
			bet:      bet,
			resultID: res.ID,
			status:   target,
			prize:    p,
			trigger:  TriggerRecheck,
			topic:    model.TopicBetSettled,
			guard:    []exp.Expression{g.C("status").In(state.SourcesOf(evt))},
		})
		return err
	})
	if err != nil {
		metrics.RecordSettledBet(TriggerRecheck, OutcomeError)
		logger.ErrorCtx(ctx, "recheck failed", zap.String("bet_id", ref), zap.Error(err))
		return nil, err
	}
	if !swapped {
		metrics.RecordSettledBet(TriggerRecheck, "conflict")
		logger.InfoCtx(ctx, "recheck lost the race", zap.String("bet_id", ref))
		return nil, ErrAlreadySettled
	}

	metrics.RecordSettledBet(TriggerRecheck, target)
	logger.InfoCtx(ctx, "bet rechecked",
		zap.String("bet_id", ref),
		zap.Int64("result_id", res.ID),
		zap.String("status", target),
		zap.String("prize", p.Prize.StringFixed(2)))
	return &RecheckOutput{
		BetID:    ref,
		ResultID: res.ID,
		Status:   target,
		Prize:    p.Prize.StringFixed(2),
		Credited: p.Win(),
	}, nil
}
