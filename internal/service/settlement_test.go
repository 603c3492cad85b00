package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"

	"lotto-server/internal/model"
	"lotto-server/internal/state"
	"lotto-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleEndToEndCentenaExtendedTier(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "ana", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "PT 14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440", "2345", "3456", "4567", "5678")

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Wins)
	assert.Empty(t, sum.Errors)

	bet, err := model.GetBet(context.Background(), f.db, betID)
	require.NoError(t, err)
	assert.Equal(t, state.BetWon, bet.Status)
	assert.Equal(t, "400.00", bet.Prize.StringFixed(2))
	assert.True(t, bet.PrizeCreditedAt.Valid)
	assert.Equal(t, sql.NullInt64{Int64: resID, Valid: true}, bet.ResultID)

	txs, err := model.ListTransactionsByRef(context.Background(), f.db, strconv.FormatInt(betID, 10))
	require.NoError(t, err)
	var prizes []string
	for _, tx := range txs {
		if tx.Type == model.TxTypePrize {
			prizes = append(prizes, tx.Amount.StringFixed(2))
		}
	}
	assert.Equal(t, []string{"400.00"}, prizes)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM outbox WHERE topic = 'bet_settled'"))
}

func TestSettleCrossLotteryIsolation(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "bia", "100.00", "0")
	maluq := f.placeBet(t, uid, "MALUQ", "14h", centenaLine("440", "1.00"))
	ptRio := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("999", "1.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 0, sum.Wins)
	assert.Equal(t, 2, sum.Scanned)

	assert.Equal(t, state.BetOpen, f.betStatus(t, maluq))
	assert.Equal(t, state.BetNotWon, f.betStatus(t, ptRio))
}

func TestSettleFederalMatchesOnlyFederal(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "caio", "100.00", "0")
	fed := f.placeBet(t, uid, "LT FEDERAL", "19h", centenaLine("440", "1.00"))
	other := f.placeBet(t, uid, "PT RIO", "19h", centenaLine("440", "1.00"))
	resID := f.publish(t, "FEDERAL RIO", "19:00", "51440")

	_, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, state.BetWon, f.betStatus(t, fed))
	assert.Equal(t, state.BetOpen, f.betStatus(t, other))
}

func TestSettleLosingBetIsNotCredited(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "duda", "10.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("123", "1.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, OutcomeNotWon, sum.Outcomes[0].Outcome)

	bet, err := model.GetBet(context.Background(), f.db, betID)
	require.NoError(t, err)
	assert.Equal(t, state.BetNotWon, bet.Status)
	assert.False(t, bet.PrizeCreditedAt.Valid)
	assert.True(t, bet.SettledAt.Valid)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "9.00", bal.StringFixed(2))
}

func TestSettlePagesThroughOpenBetsAndIsRepeatable(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "edu", "100.00", "0")
	for i := 0; i < 5; i++ {
		f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))
	}
	resID := f.publish(t, "PT RIO", "14h", "0440")

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Wins)

	again, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 0, again.Scanned)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "1095.00", bal.StringFixed(2))
}

func TestSettleUnreadableWagerLinesSettlesAsLoss(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "fabi", "10.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))
	_, err := f.db.Exec("UPDATE bets SET wager_lines = 'not json' WHERE id = ?", betID)
	require.NoError(t, err)
	resID := f.publish(t, "PT RIO", "14h", "1440")

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, state.BetNotWon, f.betStatus(t, betID))
}

func TestSettleUnknownResult(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Settlement.SettleResult(context.Background(), 42, TriggerAPI)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentRecheckCreditsOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "gabi", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		okN, conflictN int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Settlement.Recheck(context.Background(), betID, resID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okN++
			case KindOf(err) == KindConflict:
				conflictN++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, okN)
	assert.Equal(t, 1, conflictN)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = 'prize'"))
}

func TestConcurrentSettleAndRecheckCreditsOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "hugo", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	}()
	go func() {
		defer wg.Done()
		_, _ = f.svc.Settlement.Recheck(context.Background(), betID, resID)
	}()
	wg.Wait()

	bet, err := model.GetBet(context.Background(), f.db, betID)
	require.NoError(t, err)
	assert.Equal(t, state.BetWon, bet.Status)
	assert.True(t, bet.PrizeCreditedAt.Valid)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = 'prize'"))
}

func TestRecheckUsesLinkedResult(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "iris", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))
	wrong := f.publish(t, "PT RIO", "14h", "1234")
	_, err := f.svc.Settlement.SettleResult(context.Background(), wrong, TriggerAPI)
	require.NoError(t, err)
	require.Equal(t, state.BetNotWon, f.betStatus(t, betID))

	// 结果被更正后复核：关联结果的号码已变
	_, err = f.db.Exec(`UPDATE results SET numbers = '["1440"]' WHERE id = ?`, wrong)
	require.NoError(t, err)
	out, err := f.svc.Settlement.Recheck(context.Background(), betID, 0)
	require.NoError(t, err)
	assert.Equal(t, state.BetWon, out.Status)
	assert.Equal(t, "200.00", out.Prize)
	assert.True(t, out.Credited)

	_, err = f.svc.Settlement.Recheck(context.Background(), betID, 0)
	assert.True(t, errors.Is(err, ErrAlreadySettled))
}

func TestRecheckLosingBetOnlyOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "joao", "10.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("123", "1.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")

	out, err := f.svc.Settlement.Recheck(context.Background(), betID, resID)
	require.NoError(t, err)
	assert.Equal(t, state.BetNotWon, out.Status)
	assert.False(t, out.Credited)

	_, err = f.svc.Settlement.Recheck(context.Background(), betID, resID)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRecheckRequiresResult(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "kaka", "10.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("123", "1.00"))

	_, err := f.svc.Settlement.Recheck(context.Background(), betID, 0)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	_, err = f.svc.Settlement.Recheck(context.Background(), 12345, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSettleKeepsPrizeWhenTransactionCannotBeRecorded(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "lara", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")
	_, err := f.db.Exec("ALTER TABLE transactions RENAME TO transactions_off")
	require.NoError(t, err)

	sum, err := f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Wins)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, state.BetWon, f.betStatus(t, betID))
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
}

func TestSettleStaleSnapshotIsSkipped(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "leo", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")
	svc := f.svc.Settlement.(*settlementService)

	stale, err := model.GetBet(context.Background(), f.db, betID)
	require.NoError(t, err)
	_, err = f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)

	o := svc.settleOne(context.Background(), stale, resID, []string{"1440"}, TriggerAPI)
	assert.Equal(t, OutcomeSkipped, o.Outcome)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = 'prize'"))
}

func TestRecheckStaleSnapshotLosesToSettlement(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "lu", "100.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "2.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")
	svc := f.svc.Settlement.(*settlementService)

	stale, res, err := svc.loadBetAndResult(context.Background(), betID, resID)
	require.NoError(t, err)
	require.False(t, stale.PrizeCreditedAt.Valid)

	// 复核读取之后、提交之前，批量结算先完成派奖
	_, err = f.svc.Settlement.SettleResult(context.Background(), resID, TriggerAPI)
	require.NoError(t, err)

	_, err = svc.recheckBet(context.Background(), stale, res)
	assert.True(t, errors.Is(err, ErrAlreadySettled))
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "498.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = 'prize'"))
}
