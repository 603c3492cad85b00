package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxLinesPerBet   = 50
	maxGuessesPerBet = 100
	purposeBet       = "bet"
)

// BetLineInput 下注请求中的一行（金额为字符串，兼容 "2,50"）
type BetLineInput struct {
	Modality  string
	Placement string
	Guesses   []string
	StakeMode string
	Stake     string
}

// BetInput 下注输入
type BetInput struct {
	UserID         int64
	Lottery        string
	TimeSlotCode   string
	DrawDate       string // 为空时取业务时区的今天
	Lines          []BetLineInput
	IdempotencyKey string
	TraceID        string
}

// BetOutput 下注结果；同时作为幂等快照原样重放
type BetOutput struct {
	BetID        string `json:"bet_id"`
	Lottery      string `json:"lottery"`
	TimeSlotCode string `json:"time_slot_code"`
	DrawDate     string `json:"draw_date"`
	Total        string `json:"total"`
	Balance      string `json:"balance"`
	Bonus        string `json:"bonus"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"created_at"`
}

// BetLimits 单注总额上下限
type BetLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

type BetService interface {
	// PlaceBet 下注；返回 IdemCreated（201）或 IdemReplayed（200）
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, IdemStatus, error)
}

type betService struct {
	env    *Env
	guard  *IdempotencyGuard
	node   *snowflake.Node
	limits BetLimits
}

func NewBetService(env *Env, node *snowflake.Node, limits BetLimits) BetService {
	return &betService{env: env, guard: NewIdempotencyGuard(env), node: node, limits: limits}
}

// betFingerprint 参与指纹计算的语义字段（字段顺序固定）
type betFingerprint struct {
	Lottery      string      `json:"lottery"`
	TimeSlotCode string      `json:"slot"`
	DrawDate     string      `json:"date"`
	Lines        []WagerLine `json:"lines"`
}

// fingerprintLines 名次按档位参与指纹，"1-5" 与 "1/5" 视为同一请求
func fingerprintLines(lines []WagerLine) []WagerLine {
	out := make([]WagerLine, len(lines))
	for i, l := range lines {
		l.Placement = Placement(strconv.Itoa(int(l.Placement.Tier())))
		out[i] = l
	}
	return out
}

// PlaceBet 下注主流程：幂等键 → 条件扣款 → 写注单 → 写 outbox，同一事务提交
// 扣款流水写入失败视为整体失败
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (*BetOutput, IdemStatus, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBet(result, start) }()

	lines, total, err := s.normalizeLines(in.Lines)
	if err != nil {
		result = "invalid"
		return nil, IdemCreated, err
	}
	lottery := strings.TrimSpace(in.Lottery)
	slot := strings.TrimSpace(in.TimeSlotCode)
	if lottery == "" || slot == "" {
		result = "invalid"
		return nil, IdemCreated, invalidInput("lottery and timeSlotCode are required")
	}
	today := helper.Today(s.env.Clock)
	drawDate := today
	if strings.TrimSpace(in.DrawDate) != "" {
		drawDate = NormalizeDrawDate(in.DrawDate)
	}
	if !ValidDrawDate(drawDate) {
		result = "invalid"
		return nil, IdemCreated, invalidInput("invalid drawDate %q", in.DrawDate)
	}
	if drawDate < today {
		result = "invalid"
		return nil, IdemCreated, invalidInput("drawDate %s is in the past", drawDate)
	}

	fp, err := Fingerprint(betFingerprint{Lottery: lottery, TimeSlotCode: slot, DrawDate: drawDate, Lines: fingerprintLines(lines)})
	if err != nil {
		return nil, IdemCreated, internal("fingerprint", err)
	}
	encoded, err := EncodeWagerLines(lines)
	if err != nil {
		return nil, IdemCreated, internal("encode wager lines", err)
	}

	logger.InfoCtx(ctx, "place bet",
		zap.Int64("user_id", in.UserID),
		zap.String("lottery", lottery),
		zap.String("slot", slot),
		zap.String("draw_date", drawDate),
		zap.String("total", total.StringFixed(2)),
		zap.String("idem_key", in.IdempotencyKey))

	req := IdemRequest{UserID: in.UserID, Key: strings.TrimSpace(in.IdempotencyKey), Purpose: purposeBet, Fingerprint: fp}
	out, status, err := RunIdempotent(ctx, s.guard, req, func(ctx context.Context, tx *sqlx.Tx) (*BetOutput, string, error) {
		now := s.env.now()
		betID := s.node.Generate().Int64()
		ref := strconv.FormatInt(betID, 10)

		mv, err := Debit(ctx, tx, LedgerEntry{
			UserID:      in.UserID,
			Type:        model.TxTypeBet,
			Amount:      total,
			Description: "bet " + ref,
			RefID:       ref,
			TraceID:     in.TraceID,
			At:          now,
		}, AuditRequired)
		if err != nil {
			return nil, "", err
		}

		bet := &model.Bet{
			ID:           betID,
			UserID:       in.UserID,
			Lottery:      lottery,
			TimeSlotCode: slot,
			DrawDate:     drawDate,
			WagerLines:   encoded,
			Total:        total,
			Status:       state.BetOpen,
			Prize:        decimal.Zero,
			TraceID:      in.TraceID,
			CreatedAt:    now.UnixMilli(),
		}
		if err := bet.Insert(ctx, tx); err != nil {
			return nil, "", internal("insert bet", err)
		}

		payload := map[string]any{
			"event":     model.TopicBetPlaced,
			"bet_id":    ref,
			"user_id":   in.UserID,
			"lottery":   lottery,
			"draw_date": drawDate,
			"total":     total.StringFixed(2),
		}
		if err := model.CreateOutbox(ctx, tx, model.TopicBetPlaced, ref, payload); err != nil {
			return nil, "", internal("insert outbox", err)
		}

		return &BetOutput{
			BetID:        ref,
			Lottery:      lottery,
			TimeSlotCode: slot,
			DrawDate:     drawDate,
			Total:        total.StringFixed(2),
			Balance:      mv.Balance.StringFixed(2),
			Bonus:        mv.Bonus.StringFixed(2),
			Status:       state.BetOpen,
			CreatedAt:    bet.CreatedAt,
		}, ref, nil
	})
	if err != nil {
		switch KindOf(err) {
		case KindConflict:
			result = "conflict"
		case KindInsufficientFunds:
			result = "insufficient"
		case KindInvalidInput:
			result = "invalid"
		}
		logger.WarnCtx(ctx, "place bet failed", zap.Int64("user_id", in.UserID), zap.Error(err))
		return nil, status, err
	}

	result = "created"
	if status == IdemReplayed {
		result = "replayed"
	}
	logger.InfoCtx(ctx, "bet placed", zap.String("bet_id", out.BetID), zap.Bool("replay", status == IdemReplayed))
	return out, status, nil
}

// normalizeLines 校验并规范化投注行，返回总额
func (s *betService) normalizeLines(in []BetLineInput) ([]WagerLine, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, invalidInput("at least one wager line is required")
	}
	if len(in) > maxLinesPerBet {
		return nil, decimal.Zero, invalidInput("too many wager lines (max %d)", maxLinesPerBet)
	}
	total := decimal.Zero
	guessCount := 0
	lines := make([]WagerLine, 0, len(in))
	for i, l := range in {
		modality := strings.ToUpper(strings.Join(strings.Fields(l.Modality), " "))
		if modality == "" {
			return nil, decimal.Zero, invalidInput("lines[%d].modality is required", i)
		}
		if len(l.Guesses) == 0 {
			return nil, decimal.Zero, invalidInput("lines[%d].guesses is required", i)
		}
		guesses := make([]string, 0, len(l.Guesses))
		for j, g := range l.Guesses {
			d := helper.DigitsOnly(g)
			if d == "" || len(d) > 4 {
				return nil, decimal.Zero, invalidInput("lines[%d].guesses[%d] must be 1-4 digits", i, j)
			}
			guesses = append(guesses, d)
		}
		guessCount += len(guesses)

		mode := StakeMode(strings.TrimSpace(l.StakeMode))
		switch {
		case mode == "":
			mode = StakePerGuess
		case strings.EqualFold(string(mode), string(StakePerGuess)):
			mode = StakePerGuess
		case strings.EqualFold(string(mode), string(StakeFlat)):
			mode = StakeFlat
		default:
			return nil, decimal.Zero, invalidInput("lines[%d].stakeMode must be perGuess or flat", i)
		}

		stake, ok := helper.ParseMoney(l.Stake)
		if !ok || !stake.IsPositive() {
			return nil, decimal.Zero, invalidInput("lines[%d].stake must be a positive amount", i)
		}
		if !stake.Equal(helper.Round2(stake)) {
			return nil, decimal.Zero, invalidInput("lines[%d].stake has more than 2 decimals", i)
		}

		line := WagerLine{
			Modality:  modality,
			Placement: Placement(strings.TrimSpace(l.Placement)),
			Guesses:   guesses,
			StakeMode: mode,
			Stake:     decimal.NewNullDecimal(helper.Round2(stake)),
		}
		total = total.Add(line.Cost())
		lines = append(lines, line)
	}
	if guessCount > maxGuessesPerBet {
		return nil, decimal.Zero, invalidInput("too many guesses (max %d)", maxGuessesPerBet)
	}
	total = helper.Round2(total)
	if !s.limits.Min.IsZero() && total.LessThan(s.limits.Min) {
		return nil, decimal.Zero, invalidInput("bet total below minimum %s", s.limits.Min.StringFixed(2))
	}
	if !s.limits.Max.IsZero() && total.GreaterThan(s.limits.Max) {
		return nil, decimal.Zero, invalidInput("bet total exceeds maximum %s", s.limits.Max.StringFixed(2))
	}
	return lines, total, nil
}
