package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 人工操作
const (
	ActionPay    = "PAY"
	ActionReject = "REJECT"
)

// CompareOutput 试算结果
type CompareOutput struct {
	BetID       string       `json:"bet_id"`
	ResultID    int64        `json:"result_id"`
	KeysMatched bool         `json:"keys_matched"` // 开奖键是否与注单一致（仅供参考，不影响试算）
	WouldWin    bool         `json:"would_win"`
	Prize       string       `json:"prize"`
	Lines       []LinePayout `json:"lines"`
}

// ManualInput 人工结算请求
type ManualInput struct {
	BetID    int64
	ResultID int64
	Action   string
	Reason   string
	Actor    string
}

// ManualOutput 人工结算结果
type ManualOutput struct {
	OK     bool   `json:"ok"`
	BetID  string `json:"bet_id"`
	Status string `json:"status"`
	Prize  string `json:"prize"`
}

// PreviewCompare 不要求开奖键匹配，允许跨时段比对
func (s *settlementService) PreviewCompare(ctx context.Context, betID, resultID int64) (*CompareOutput, error) {
	bet, res, err := s.loadBetAndResult(ctx, betID, resultID)
	if err != nil {
		return nil, err
	}
	p := s.payoutOf(bet, res)
	bkey := NormalizeDrawKey(bet.Lottery, bet.TimeSlotCode, bet.DrawDate)
	rkey := NormalizeDrawKey(res.Lottery, res.TimeSlotCode, res.DrawDate)
	return &CompareOutput{
		BetID:       strconv.FormatInt(bet.ID, 10),
		ResultID:    res.ID,
		KeysMatched: bkey.Matches(rkey),
		WouldWin:    p.Win(),
		Prize:       p.Prize.StringFixed(2),
		Lines:       p.Lines,
	}, nil
}

// ManualSettle 审计记录 (bet_id, action) 唯一，重复操作返回 ErrActionReplayed；
// 已派奖的注单返回 ErrAlreadySettled。审计记录与注单变更同一事务提交
func (s *settlementService) ManualSettle(ctx context.Context, in ManualInput) (*ManualOutput, error) {
	start := time.Now()
	defer metrics.RecordSettleRun(TriggerManual, start)

	action := strings.ToUpper(strings.TrimSpace(in.Action))
	var evt string
	switch action {
	case ActionPay:
		evt = state.EvtPay
	case ActionReject:
		evt = state.EvtReject
	default:
		return nil, invalidInput("action must be PAY or REJECT")
	}
	if in.ResultID <= 0 {
		return nil, invalidInput("resultId is required")
	}

	bet, res, err := s.loadBetAndResult(ctx, in.BetID, in.ResultID)
	if err != nil {
		return nil, err
	}
	ref := strconv.FormatInt(bet.ID, 10)
	if bet.Status == state.BetPaid || bet.PrizeCreditedAt.Valid {
		return nil, ErrAlreadySettled
	}

	p := Payout{Prize: decimal.Zero}
	if action == ActionPay {
		p = s.payoutOf(bet, res)
		if !p.Win() {
			return nil, invalidInput("bet %s has no prize against result %d", ref, res.ID)
		}
	}

	var target string
	err = s.env.withTx(ctx, func(tx *sqlx.Tx) error {
		audit := &model.ManualSettlement{
			BetID:     bet.ID,
			ResultID:  res.ID,
			Action:    action,
			Reason:    strings.TrimSpace(in.Reason),
			Prize:     p.Prize,
			Actor:     in.Actor,
			CreatedAt: s.env.nowMillis(),
		}
		if err := audit.Insert(ctx, tx); err != nil {
			if infmysql.IsDuplicateKey(err) {
				return ErrActionReplayed
			}
			return internal("insert manual settlement", err)
		}
		var err error
		if target, err = state.NextBetStatus(bet.Status, evt); err != nil {
			return ErrAlreadySettled
		}
		swapped, err := s.commitOutcome(ctx, tx, outcomeCommit{
			bet:      bet,
			resultID: res.ID,
			status:   target,
			prize:    p,
			trigger:  TriggerManual,
			topic:    model.TopicBetManualSettled,
			guard:    []exp.Expression{g.C("status").In(state.SourcesOf(evt))},
			extra:    map[string]any{"action": action, "actor": in.Actor},
		})
		if err != nil {
			return err
		}
		if !swapped {
			// 回滚审计记录
			return ErrAlreadySettled
		}
		return nil
	})
	if err != nil {
		outcome := OutcomeError
		if KindOf(err) == KindConflict {
			outcome = "conflict"
		}
		metrics.RecordSettledBet(TriggerManual, outcome)
		logger.WarnCtx(ctx, "manual settle rejected",
			zap.String("bet_id", ref), zap.String("action", action), zap.Error(err))
		return nil, err
	}

	metrics.RecordSettledBet(TriggerManual, target)
	logger.InfoCtx(ctx, "bet manually settled",
		zap.String("bet_id", ref),
		zap.Int64("result_id", res.ID),
		zap.String("action", action),
		zap.String("actor", in.Actor),
		zap.String("prize", p.Prize.StringFixed(2)))
	return &ManualOutput{OK: true, BetID: ref, Status: target, Prize: p.Prize.StringFixed(2)}, nil
}
