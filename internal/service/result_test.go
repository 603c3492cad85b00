package service

import (
	"context"
	"strconv"
	"testing"

	"lotto-server/internal/state"
	"lotto-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishResultNormalizesNumbers(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Result.PublishResult(context.Background(), ResultInput{
		Lottery: "PT RIO", TimeSlotCode: "14h", DrawDate: "10/05/2024",
		Numbers: []string{" 1.440 ", "2345"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1440", "2345"}, out.Numbers)
	assert.Nil(t, out.Settled)

	var date string
	require.NoError(t, f.db.Get(&date, "SELECT draw_date FROM results WHERE id = ?", out.ResultID))
	assert.Equal(t, testDrawDate, date)
}

func TestPublishResultValidation(t *testing.T) {
	f := newFixture(t)
	cases := []ResultInput{
		{TimeSlotCode: "14h", DrawDate: testDrawDate, Numbers: []string{"1"}},
		{Lottery: "PT", TimeSlotCode: "14h", DrawDate: "x", Numbers: []string{"1"}},
		{Lottery: "PT", TimeSlotCode: "14h", DrawDate: testDrawDate},
		{Lottery: "PT", TimeSlotCode: "14h", DrawDate: testDrawDate, Numbers: []string{"1", "2", "3", "4", "5", "6"}},
		{Lottery: "PT", TimeSlotCode: "14h", DrawDate: testDrawDate, Numbers: []string{"--"}},
	}
	for _, in := range cases {
		_, err := f.svc.Result.PublishResult(context.Background(), in)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	}
}

func TestPublishResultAutoSettle(t *testing.T) {
	f := newFixture(t)
	f.svc = NewServices(f.env, Options{
		Node:       f.svc.Bet.(*betService).node,
		AutoSettle: func() bool { return true },
	})
	uid := testutil.SeedAccount(t, f.db, "ana", "10.00", "0")
	betID := f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))

	out, err := f.svc.Result.PublishResult(context.Background(), ResultInput{
		Lottery: "PT RIO", TimeSlotCode: "14h", DrawDate: testDrawDate, Numbers: []string{"1440"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Settled)
	assert.Equal(t, 1, out.Settled.Wins)
	assert.Equal(t, state.BetWon, f.betStatus(t, betID))
}

func TestConsumeResultPublishedOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "bia", "10.00", "0")
	f.placeBet(t, uid, "PT RIO", "14h", centenaLine("440", "1.00"))
	resID := f.publish(t, "PT RIO", "14h", "1440")
	body := []byte(`{"result_id":` + strconv.FormatInt(resID, 10) + `}`)

	sum, err := f.svc.Result.ConsumeResultPublished(context.Background(), "msg-1", body)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Wins)

	sum, err = f.svc.Result.ConsumeResultPublished(context.Background(), "msg-1", body)
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM inbox"))

	_, err = f.svc.Result.ConsumeResultPublished(context.Background(), "msg-2", []byte(`{}`))
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestConsumeUnknownResultReleasesInbox(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"result_id":999}`)

	_, err := f.svc.Result.ConsumeResultPublished(context.Background(), "msg-9", body)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM inbox"))
}
