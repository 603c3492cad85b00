package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"lotto-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCharge(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "ana", "0", "0")
	ctx := context.Background()

	out, err := f.svc.Pix.CreateCharge(ctx, ChargeInput{UserID: uid, Amount: "1.234,50"})
	require.NoError(t, err)
	assert.Equal(t, "1234.50", out.Amount)
	assert.NotEmpty(t, out.CorrelationID)
	assert.Equal(t, "pending", out.Status)

	_, err = f.svc.Pix.CreateCharge(ctx, ChargeInput{UserID: uid, Amount: "10", CorrelationID: out.CorrelationID})
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.svc.Pix.CreateCharge(ctx, ChargeInput{UserID: uid, Amount: "-1"})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = f.svc.Pix.CreateCharge(ctx, ChargeInput{UserID: 999, Amount: "5"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAccountBalanceAndBets(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "bia", "10.00", "2.50")
	ctx := context.Background()
	first := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))
	f.placeBet(t, uid, "PT RIO", "18h", centenaLine("441", "1.00"))

	bal, err := f.svc.Account.GetBalance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "8.00", bal.Balance)
	assert.Equal(t, "2.50", bal.Bonus)
	assert.Equal(t, "10.50", bal.Total)

	bets, err := f.svc.Account.ListBets(ctx, uid, 1, 1)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	bets, err = f.svc.Account.ListBets(ctx, uid, 2, 1)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, strconv.FormatInt(first, 10), bets[0].BetID)
	assert.Equal(t, "14h", bets[0].TimeSlotCode)
	assert.NotEmpty(t, bets[0].Lines)

	_, err = f.svc.Account.GetBalance(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}
