package service

import (
	"context"
	"strconv"

	"lotto-server/common/helper"
	"lotto-server/internal/model"
)

const maxBetPageSize = 100

// BalanceOutput 账户余额
type BalanceOutput struct {
	UserID  int64  `json:"user_id"`
	Balance string `json:"balance"`
	Bonus   string `json:"bonus"`
	Total   string `json:"total"`
}

// BetView 注单列表项
type BetView struct {
	BetID        string      `json:"bet_id"`
	Lottery      string      `json:"lottery"`
	TimeSlotCode string      `json:"time_slot_code"`
	DrawDate     string      `json:"draw_date"`
	Lines        []WagerLine `json:"lines"`
	Total        string      `json:"total"`
	Status       string      `json:"status"`
	Prize        string      `json:"prize"`
	ResultID     *int64      `json:"result_id,omitempty"`
	SettledAt    *int64      `json:"settled_at,omitempty"`
	CreatedAt    int64       `json:"created_at"`
}

type AccountService interface {
	GetBalance(ctx context.Context, userID int64) (*BalanceOutput, error)
	ListBets(ctx context.Context, userID int64, page, size int) ([]BetView, error)
}

type accountService struct {
	env *Env
}

func NewAccountService(env *Env) AccountService { return &accountService{env: env} }

func (s *accountService) GetBalance(ctx context.Context, userID int64) (*BalanceOutput, error) {
	acc, err := model.GetAccount(ctx, s.env.DB, userID)
	if err != nil {
		if helper.IsNoRows(err) {
			return nil, notFound("account")
		}
		return nil, internal("load account", err)
	}
	return &BalanceOutput{
		UserID:  acc.ID,
		Balance: acc.Balance.StringFixed(2),
		Bonus:   acc.Bonus.StringFixed(2),
		Total:   acc.Balance.Add(acc.Bonus).StringFixed(2),
	}, nil
}

// ListBets page 从 1 开始
func (s *accountService) ListBets(ctx context.Context, userID int64, page, size int) ([]BetView, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxBetPageSize {
		size = 20
	}
	bets, err := model.ListUserBets(ctx, s.env.DB, userID, size, (page-1)*size)
	if err != nil {
		return nil, internal("list bets", err)
	}
	out := make([]BetView, 0, len(bets))
	for _, b := range bets {
		lines, _ := DecodeWagerLines(b.WagerLines)
		v := BetView{
			BetID:        strconv.FormatInt(b.ID, 10),
			Lottery:      b.Lottery,
			TimeSlotCode: b.TimeSlotCode,
			DrawDate:     b.DrawDate,
			Lines:        lines,
			Total:        b.Total.StringFixed(2),
			Status:       b.Status,
			Prize:        b.Prize.StringFixed(2),
			CreatedAt:    b.CreatedAt,
		}
		if b.ResultID.Valid {
			id := b.ResultID.Int64
			v.ResultID = &id
		}
		if b.SettledAt.Valid {
			at := b.SettledAt.Int64
			v.SettledAt = &at
		}
		out = append(out, v)
	}
	return out, nil
}
