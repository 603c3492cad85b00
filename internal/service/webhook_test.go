package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lotto-server/internal/auth"
	"lotto-server/internal/model"
	"lotto-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidEvent(eventID, correlationID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"OPENPIX:CHARGE_COMPLETED","eventId":%q,"charge":{"status":"COMPLETED","correlationID":%q,"transactionID":"tx-%s"}}`,
		eventID, correlationID, correlationID))
}

func (f *fixture) deliver(t *testing.T, body []byte) (WebhookOutcome, error) {
	t.Helper()
	return f.svc.Webhook.HandlePixWebhook(context.Background(), WebhookInput{
		Provider:  "openpix",
		Signature: auth.SignWebhook("s3cret", body),
		Body:      body,
	})
}

func (f *fixture) newCharge(t *testing.T, uid int64, corr, amount string) {
	t.Helper()
	_, err := f.svc.Pix.CreateCharge(context.Background(), ChargeInput{UserID: uid, Amount: amount, CorrelationID: corr})
	require.NoError(t, err)
}

func TestWebhookReplayCreditsOnce(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "ana", "0", "0")
	f.newCharge(t, uid, "corr-1", "50,00")

	out, err := f.deliver(t, paidEvent("evt-1", "corr-1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookCredited, out)

	out, err = f.deliver(t, paidEvent("evt-1", "corr-1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, out)

	// 新的 eventId 指向已入账的充值单
	out, err = f.deliver(t, paidEvent("evt-2", "corr-1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookAlreadyCredited, out)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "50.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM transactions WHERE type = ?", model.TxTypePixDeposit))
	assert.Equal(t, 2, testutil.Count(t, f.db, "SELECT COUNT(*) FROM webhook_events"))
	assert.Equal(t, 2, testutil.Count(t, f.db, "SELECT COUNT(*) FROM webhook_events WHERE charge_id IS NOT NULL"))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM pix_charges WHERE status = 'paid' AND credited = 1 AND transaction_id = 'tx-corr-1'"))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM outbox WHERE topic = 'pix_credited'"))
}

func TestWebhookChargeFlagSurvivesEventPurge(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "bia", "0", "0")
	f.newCharge(t, uid, "corr-2", "10.00")

	_, err := f.deliver(t, paidEvent("evt-1", "corr-2"))
	require.NoError(t, err)
	_, err = f.db.Exec("DELETE FROM webhook_events")
	require.NoError(t, err)

	out, err := f.deliver(t, paidEvent("evt-1", "corr-2"))
	require.NoError(t, err)
	assert.Equal(t, WebhookAlreadyCredited, out)
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "10.00", bal.StringFixed(2))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "caio", "0", "0")
	f.newCharge(t, uid, "corr-3", "10.00")
	body := paidEvent("evt-1", "corr-3")

	out, err := f.svc.Webhook.HandlePixWebhook(context.Background(), WebhookInput{
		Provider: "openpix", Signature: auth.SignWebhook("wrong", body), Body: body,
	})
	assert.Equal(t, WebhookRejected, out)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	out, _ = f.svc.Webhook.HandlePixWebhook(context.Background(), WebhookInput{
		Provider: "unknown", Signature: auth.SignWebhook("s3cret", body), Body: body,
	})
	assert.Equal(t, WebhookRejected, out)

	assert.Equal(t, 0, testutil.Count(t, f.db, "SELECT COUNT(*) FROM webhook_events"))
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "0.00", bal.StringFixed(2))
}

func TestWebhookAcceptsPrefixedSignature(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "duda", "0", "0")
	f.newCharge(t, uid, "corr-4", "7.50")
	body := paidEvent("evt-9", "corr-4")

	out, err := f.svc.Webhook.HandlePixWebhook(context.Background(), WebhookInput{
		Provider: "OpenPix", Signature: "sha256=" + auth.SignWebhook("s3cret", body), Body: body,
	})
	require.NoError(t, err)
	assert.Equal(t, WebhookCredited, out)
}

func TestWebhookIgnoredAndUnresolved(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "edu", "0", "0")
	f.newCharge(t, uid, "corr-5", "10.00")

	out, err := f.deliver(t, []byte(`{"event":"OPENPIX:CHARGE_CREATED","eventId":"evt-c","charge":{"status":"ACTIVE","correlationID":"corr-5"}}`))
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, out)

	out, err = f.deliver(t, paidEvent("evt-x", "no-such-charge"))
	require.NoError(t, err)
	assert.Equal(t, WebhookUnresolved, out)

	out, err = f.deliver(t, []byte(`{"event":"OPENPIX:CHARGE_COMPLETED"}`))
	assert.Equal(t, WebhookRejected, out)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	assert.Equal(t, 2, testutil.Count(t, f.db, "SELECT COUNT(*) FROM webhook_events"))
	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "0.00", bal.StringFixed(2))
}

func TestWebhookEventIDFallback(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "fabi", "0", "0")
	f.newCharge(t, uid, "corr-6", "1.00")
	body := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"corr-6"}}`)

	out, err := f.deliver(t, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookCredited, out)
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM webhook_events WHERE event_id = ?", "OPENPIX:CHARGE_COMPLETED:corr-6"))

	out, err = f.deliver(t, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, out)
}

func TestWebhookKeepsCreditWhenTransactionCannotBeRecorded(t *testing.T) {
	f := newFixture(t)
	uid := testutil.SeedAccount(t, f.db, "lia", "1.00", "0")
	f.newCharge(t, uid, "corr-audit", "10.00")
	_, err := f.db.Exec("ALTER TABLE transactions RENAME TO transactions_off")
	require.NoError(t, err)

	out, err := f.deliver(t, paidEvent("evt-audit", "corr-audit"))
	require.NoError(t, err)
	assert.Equal(t, WebhookCredited, out)

	bal, _ := testutil.Balance(t, f.db, uid)
	assert.Equal(t, "11.00", bal.StringFixed(2))
	assert.Equal(t, 1, testutil.Count(t, f.db, "SELECT COUNT(*) FROM pix_charges WHERE credited = 1"))
}
