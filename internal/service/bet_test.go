package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lotto-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func betInput(uid int64, key string, lines ...BetLineInput) BetInput {
	return BetInput{
		UserID:         uid,
		Lottery:        "PT RIO",
		TimeSlotCode:   "PT 14h",
		DrawDate:       testDrawDate,
		Lines:          lines,
		IdempotencyKey: key,
	}
}

func TestPlaceBetIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "ana", "100.00", "0")
	ctx := context.Background()

	first, st, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "k-1", centenaLine("440", "2,00")))
	require.NoError(t, err)
	assert.Equal(t, IdemCreated, st)
	assert.Equal(t, "2.00", first.Total)
	assert.Equal(t, "98.00", first.Balance)

	// 空白与大小写差异不影响指纹
	again := betInput(uid, "k-1", BetLineInput{Modality: " CENTENA ", Placement: "1-5", Guesses: []string{" 440"}, StakeMode: "PERGUESS", Stake: "2.00"})
	second, st, err := f.svc.Bet.PlaceBet(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, IdemReplayed, st)
	assert.Equal(t, first, second)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "98.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = 'bet'"))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM outbox WHERE topic = 'bet_placed'"))
}

func TestPlaceBetFingerprintConflict(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "bia", "100.00", "0")
	ctx := context.Background()

	_, _, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "k-1", centenaLine("440", "2.00")))
	require.NoError(t, err)

	_, _, err = f.svc.Bet.PlaceBet(ctx, betInput(uid, "k-1", centenaLine("441", "2.00")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFingerprintMismatch))
	assert.Equal(t, KindConflict, KindOf(err))

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "98.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
}

func TestPlaceBetConcurrentSameKeyDebitsOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "caio", "100.00", "0")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, err := f.svc.Bet.PlaceBet(context.Background(), betInput(uid, "same", centenaLine("440", "3.00")))
			if err != nil {
				return
			}
			mu.Lock()
			ids[out.BetID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "97.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
}

func TestPlaceBetWithoutKeyCreatesEachTime(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "duda", "10.00", "0")
	ctx := context.Background()

	a, _, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "", centenaLine("440", "1.00")))
	require.NoError(t, err)
	b, _, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "", centenaLine("440", "1.00")))
	require.NoError(t, err)
	assert.NotEqual(t, a.BetID, b.BetID)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "8.00", bal.StringFixed(2))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM idempotency_keys"))
}

func TestPlaceBetDrawsBonusAfterBalance(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "edu", "1.00", "5.00")

	out, _, err := f.svc.Bet.PlaceBet(context.Background(), betInput(uid, "k", BetLineInput{
		Modality: "MILHAR", Guesses: []string{"1234", "4321"}, StakeMode: "perGuess", Stake: "1.50",
	}))
	require.NoError(t, err)
	assert.Equal(t, "3.00", out.Total)
	assert.Equal(t, "0.00", out.Balance)
	assert.Equal(t, "3.00", out.Bonus)
}

func TestPlaceBetInsufficientFundsRollsBackKey(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "fabi", "1.00", "0.50")

	_, _, err := f.svc.Bet.PlaceBet(context.Background(), betInput(uid, "k", centenaLine("440", "2.00")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM idempotency_keys"))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions"))

	// 充值后可用同一个 key 重试
	_, err = f.db.Exec("UPDATE accounts SET balance = 10 WHERE id = ?", uid)
	require.NoError(t, err)
	_, st, err := f.svc.Bet.PlaceBet(context.Background(), betInput(uid, "k", centenaLine("440", "2.00")))
	require.NoError(t, err)
	assert.Equal(t, IdemCreated, st)
}

func TestPlaceBetValidation(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "gabi", "5000.00", "0")

	cases := []struct {
		name string
		in   BetInput
	}{
		{"no lines", betInput(uid, "")},
		{"no lottery", BetInput{UserID: uid, TimeSlotCode: "14h", Lines: []BetLineInput{centenaLine("440", "1.00")}}},
		{"bad guess", betInput(uid, "", centenaLine("abc", "1.00"))},
		{"guess too long", betInput(uid, "", centenaLine("12345", "1.00"))},
		{"zero stake", betInput(uid, "", centenaLine("440", "0"))},
		{"malformed stake", betInput(uid, "", centenaLine("440", "1,2,3"))},
		{"three decimals", betInput(uid, "", centenaLine("440", "1.005"))},
		{"below minimum", betInput(uid, "", centenaLine("440", "0.10"))},
		{"above maximum", betInput(uid, "", centenaLine("440", "1000.01"))},
		{"bad stake mode", betInput(uid, "", BetLineInput{Modality: "GRUPO", Guesses: []string{"01"}, StakeMode: "half", Stake: "1.00"})},
		{"past draw date", func() BetInput {
			in := betInput(uid, "", centenaLine("440", "1.00"))
			in.DrawDate = "09/05/2024"
			return in
		}()},
		{"garbage draw date", func() BetInput {
			in := betInput(uid, "", centenaLine("440", "1.00"))
			in.DrawDate = "tomorrow"
			return in
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Bet.PlaceBet(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
}

func TestPlaceBetDefaultsDrawDateToToday(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "hugo", "10.00", "0")
	in := betInput(uid, "", centenaLine("440", "1.00"))
	in.DrawDate = ""

	out, _, err := f.svc.Bet.PlaceBet(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, testDrawDate, out.DrawDate)
}

func TestPlaceBetFailsWhenTransactionCannotBeRecorded(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "fabi", "100.00", "0")
	_, err := f.db.Exec("ALTER TABLE transactions RENAME TO transactions_off")
	require.NoError(t, err)

	_, _, err = f.svc.Bet.PlaceBet(context.Background(), betInput(uid, "audit", centenaLine("440", "2.00")))
	assert.Equal(t, KindInternal, KindOf(err))

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "100.00", bal.StringFixed(2))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM bets"))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM idempotency_keys"))
}

func TestPlaceBetReplayIgnoresPlacementSpelling(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "gil", "100.00", "0")
	ctx := context.Background()

	line := centenaLine("440", "2.00")
	first, status, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "tier", line))
	require.NoError(t, err)
	assert.Equal(t, IdemCreated, status)

	line.Placement = "1/5"
	again, status, err := f.svc.Bet.PlaceBet(ctx, betInput(uid, "tier", line))
	require.NoError(t, err)
	assert.Equal(t, IdemReplayed, status)
	assert.Equal(t, first.BetID, again.BetID)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "98.00", bal.StringFixed(2))
}
