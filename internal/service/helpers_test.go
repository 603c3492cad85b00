package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"lotto-server/common/helper"
	"lotto-server/internal/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testDrawDate = "2024-05-10"

var brt = time.FixedZone("BRT", -3*3600)

type fixture struct {
	db  *sqlx.DB
	env *Env
	svc *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	env := &Env{
		DB:        db,
		Clock:     helper.FixedClock{T: time.Date(2024, 5, 10, 9, 30, 0, 0, brt)},
		TxTimeout: 5 * time.Second,
	}
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewServices(env, Options{
		Node: node,
		Limits: BetLimits{
			Min: decimal.RequireFromString("0.50"),
			Max: decimal.RequireFromString("1000.00"),
		},
		SettlePageSize: 2,
		WebhookSecret: func(provider string) string {
			if provider == "openpix" {
				return "s3cret"
			}
			return ""
		},
	})
	return &fixture{db: db, env: env, svc: svc}
}

func centenaLine(guess, stake string) BetLineInput {
	return BetLineInput{Modality: "centena", Placement: "1-5", Guesses: []string{guess}, StakeMode: "perGuess", Stake: stake}
}

// placeBet 下注并返回注单 ID
func (f *fixture) placeBet(t *testing.T, userID int64, lottery, slot string, lines ...BetLineInput) int64 {
	t.Helper()
	out, _, err := f.svc.Bet.PlaceBet(context.Background(), BetInput{
		UserID:       userID,
		Lottery:      lottery,
		TimeSlotCode: slot,
		DrawDate:     testDrawDate,
		Lines:        lines,
	})
	require.NoError(t, err)
	id, err := strconv.ParseInt(out.BetID, 10, 64)
	require.NoError(t, err)
	return id
}

func (f *fixture) publish(t *testing.T, lottery, slot string, numbers ...string) int64 {
	t.Helper()
	out, err := f.svc.Result.PublishResult(context.Background(), ResultInput{
		Lottery:      lottery,
		TimeSlotCode: slot,
		DrawDate:     testDrawDate,
		Numbers:      numbers,
		CreatedBy:    "admin",
	})
	require.NoError(t, err)
	return out.ResultID
}

func (f *fixture) betStatus(t *testing.T, id int64) string {
	t.Helper()
	var s string
	require.NoError(t, f.db.Get(&s, "SELECT status FROM bets WHERE id = ?", id))
	return s
}
