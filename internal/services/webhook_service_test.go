package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"
	"ridewallet/pkg/cache"
	"ridewallet/pkg/payment"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func (f *fixture) useRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.cache = cache.NewRedisCacheWithClient(client)
	return mr
}

func (f *fixture) webhookService() WebhookService {
	provider := payment.NewStripeProvider(payment.StripeOptions{SecretKey: "sk_test", WebhookSecret: testWebhookSecret})
	return NewWebhookService(provider, f.reconciler(), f.cache, f.audit, f.metrics, f.logger, time.Hour)
}

func (f *fixture) pendingTopUp(t *testing.T, w *models.Wallet, sessionID, reference, amount string) *models.WalletTransaction {
	t.Helper()
	now := time.Now().UTC()
	txn := &models.WalletTransaction{
		ID:              uuid.New(),
		WalletID:        w.ID,
		UserID:          w.UserID,
		Amount:          decimal.RequireFromString(amount),
		Type:            models.TransactionTypeDeposit,
		Status:          models.TransactionStatusPending,
		Reference:       reference,
		StripeSessionID: &sessionID,
		Description:     utils.TopUpProductName,
		Metadata:        models.Metadata{models.MetaClientReferenceID: reference},
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.store.Transactions().Create(context.Background(), txn))
	return txn
}

func signedEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	return signed.Payload, signed.Header
}

func sessionObject(w *models.Wallet, sessionID, paymentIntentID, paymentStatus string, amount int64) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"status":         payment.SessionStatusComplete,
		"payment_status": paymentStatus,
		"amount_total":   amount,
		"currency":       "usd",
		"payment_intent": paymentIntentID,
		"metadata": map[string]string{
			"userId":   w.UserID.String(),
			"walletId": w.ID.String(),
			"type":     utils.TopUpMetadataType,
		},
	}
}

func deliver(t *testing.T, svc WebhookService, eventID, eventType string, object map[string]interface{}) (*WebhookResult, error) {
	t.Helper()
	payload, header := signedEvent(t, eventID, eventType, object)
	return svc.HandleStripeEvent(context.Background(), payload, header)
}

func TestWebhookService_CompletesTopUpExactlyOnce(t *testing.T) {
	f := newFixture(t)
	mr := f.useRedis(t)
	w := f.wallet(t, "5.00", "USD")
	f.pendingTopUp(t, w, "cs_1", "ref-1", "25.00")
	svc := f.webhookService()
	object := sessionObject(w, "cs_1", "pi_1", payment.PaymentStatusPaid, 2500)

	result, err := deliver(t, svc, "evt_1", payment.EventCheckoutSessionCompleted, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.True(t, decimal.RequireFromString("30.00").Equal(f.balance(t, w.ID)))
	assert.True(t, mr.Exists(utils.CacheStripeEventPrefix+"evt_1"))

	updates := f.realtime.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, utils.EventTopUpCompleted, updates[0].Event)
	assert.True(t, decimal.RequireFromString("30.00").Equal(updates[0].Balance))

	// same event delivered again
	replay, err := deliver(t, svc, "evt_1", payment.EventCheckoutSessionCompleted, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, replay.Outcome)

	// the async success for the same payment arrives under a new event id
	dup, err := deliver(t, svc, "evt_2", payment.EventCheckoutSessionAsyncPaymentSucceeded, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, dup.Outcome)

	assert.True(t, decimal.RequireFromString("30.00").Equal(f.balance(t, w.ID)))
	assert.Len(t, f.realtime.Updates(), 1)

	txn, err := f.store.Transactions().GetBySessionID(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "pi_1", *txn.StripePaymentIntentID)
	assert.Equal(t, "evt_1", txn.Metadata[models.MetaEventID])
}

func TestWebhookService_DuplicateWithoutReplayMarker(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_1", "ref-1", "10.00")
	svc := f.webhookService()
	object := sessionObject(w, "cs_1", "pi_1", payment.PaymentStatusPaid, 1000)

	for i := 0; i < 3; i++ {
		_, err := deliver(t, svc, "evt_same", payment.EventCheckoutSessionCompleted, object)
		require.NoError(t, err)
	}
	assert.True(t, decimal.RequireFromString("10.00").Equal(f.balance(t, w.ID)))
}

func TestWebhookService_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_1", "ref-1", "10.00")
	svc := f.webhookService()

	payload, _ := signedEvent(t, "evt_forged", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_1", "pi_1", payment.PaymentStatusPaid, 1000))
	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_wrong"})

	_, err := svc.HandleStripeEvent(context.Background(), payload, forged.Header)
	requireAppError(t, err, http.StatusBadRequest, CodeInvalidSignature)

	_, err = svc.HandleStripeEvent(context.Background(), payload, "")
	requireAppError(t, err, http.StatusBadRequest, CodeInvalidSignature)

	assert.True(t, f.balance(t, w.ID).IsZero())
	assert.Empty(t, f.audit.Actions())
}

func TestWebhookService_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_exp", "ref-exp", "10.00")
	svc := f.webhookService()

	object := sessionObject(w, "cs_exp", "", payment.PaymentStatusUnpaid, 1000)
	object["status"] = payment.SessionStatusExpired
	result, err := deliver(t, svc, "evt_exp", payment.EventCheckoutSessionExpired, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)

	txn, err := f.store.Transactions().GetBySessionID(context.Background(), "cs_exp")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusExpired, txn.Status)
	assert.Equal(t, "session_expired", txn.Metadata[models.MetaFailureReason])
	assert.True(t, f.balance(t, w.ID).IsZero())

	// a paid event for an expired entry is acknowledged without crediting
	late, err := deliver(t, svc, "evt_late", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_exp", "pi_late", payment.PaymentStatusPaid, 1000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, late.Outcome)
	assert.True(t, f.balance(t, w.ID).IsZero())

	// a second expiry for the same session changes nothing
	again, err := deliver(t, svc, "evt_exp_2", payment.EventCheckoutSessionExpired, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, again.Outcome)
}

func TestWebhookService_PaymentFailedThenSucceeded(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_retry", "ref-retry", "10.00")
	svc := f.webhookService()

	result, err := deliver(t, svc, "evt_fail", payment.EventPaymentIntentPaymentFailed, map[string]interface{}{
		"id":       "pi_retry",
		"object":   "payment_intent",
		"status":   "requires_payment_method",
		"amount":   1000,
		"currency": "usd",
		"metadata": map[string]string{"clientReferenceId": "ref-retry", "walletId": w.ID.String()},
		"last_payment_error": map[string]interface{}{
			"message": "Your card was declined.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)

	txn, err := f.store.Transactions().GetBySessionID(context.Background(), "cs_retry")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	assert.Equal(t, "Your card was declined.", txn.Metadata[models.MetaFailureReason])

	completed, err := deliver(t, svc, "evt_ok", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_retry", "pi_retry", payment.PaymentStatusPaid, 1000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, completed.Outcome)
	assert.True(t, decimal.RequireFromString("10.00").Equal(f.balance(t, w.ID)))
}

func TestWebhookService_PaymentFailedThenSessionExpired(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_abandon", "ref-abandon", "10.00")
	svc := f.webhookService()

	failed, err := deliver(t, svc, "evt_abandon_fail", payment.EventPaymentIntentPaymentFailed, map[string]interface{}{
		"id":       "pi_abandon",
		"object":   "payment_intent",
		"status":   "requires_payment_method",
		"amount":   1000,
		"currency": "usd",
		"metadata": map[string]string{"clientReferenceId": "ref-abandon", "walletId": w.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, failed.Outcome)

	object := sessionObject(w, "cs_abandon", "", payment.PaymentStatusUnpaid, 1000)
	object["status"] = payment.SessionStatusExpired
	expired, err := deliver(t, svc, "evt_abandon_exp", payment.EventCheckoutSessionExpired, object)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, expired.Outcome)

	txn, err := f.store.Transactions().GetBySessionID(context.Background(), "cs_abandon")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusExpired, txn.Status)
	assert.True(t, txn.Status.IsTerminal())
	assert.True(t, f.balance(t, w.ID).IsZero())

	// once expired, a late payment is acknowledged without crediting
	late, err := deliver(t, svc, "evt_abandon_late", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_abandon", "pi_abandon", payment.PaymentStatusPaid, 1000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, late.Outcome)
	assert.True(t, f.balance(t, w.ID).IsZero())
}

func TestWebhookService_Outcomes(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_async", "ref-async", "10.00")
	svc := f.webhookService()

	t.Run("unpaid completion waits for async result", func(t *testing.T) {
		result, err := deliver(t, svc, "evt_unpaid", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_async", "", payment.PaymentStatusUnpaid, 1000))
		require.NoError(t, err)
		assert.Equal(t, OutcomeAwaitingPayment, result.Outcome)
		assert.True(t, f.balance(t, w.ID).IsZero())
	})

	t.Run("async failure", func(t *testing.T) {
		result, err := deliver(t, svc, "evt_async_failed", payment.EventCheckoutSessionAsyncPaymentFailed, sessionObject(w, "cs_async", "", payment.PaymentStatusUnpaid, 1000))
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, result.Outcome)
	})

	t.Run("unknown payment intent", func(t *testing.T) {
		result, err := deliver(t, svc, "evt_pi_unknown", payment.EventPaymentIntentPaymentFailed, map[string]interface{}{
			"id":     "pi_unknown",
			"object": "payment_intent",
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoMatch, result.Outcome)
	})

	t.Run("expiry of an unknown session", func(t *testing.T) {
		result, err := deliver(t, svc, "evt_exp_unknown", payment.EventCheckoutSessionExpired, sessionObject(w, "cs_unknown", "", payment.PaymentStatusUnpaid, 1000))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoMatch, result.Outcome)
	})

	t.Run("unhandled type", func(t *testing.T) {
		result, err := deliver(t, svc, "evt_other", "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnhandled, result.Outcome)
	})

	t.Run("paid session that is not a top-up", func(t *testing.T) {
		object := sessionObject(w, "cs_other", "pi_other", payment.PaymentStatusPaid, 1000)
		object["metadata"] = map[string]string{"type": "subscription"}
		result, err := deliver(t, svc, "evt_not_topup", payment.EventCheckoutSessionCompleted, object)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotWalletTopUp, result.Outcome)
	})

	t.Run("paid top-up with no ledger entry is retried", func(t *testing.T) {
		_, err := deliver(t, svc, "evt_missing", payment.EventCheckoutSessionCompleted, sessionObject(w, "cs_missing", "pi_missing", payment.PaymentStatusPaid, 1000))
		requireAppError(t, err, http.StatusNotFound, CodeNotFound)
	})

	assert.True(t, f.balance(t, w.ID).IsZero())
}
