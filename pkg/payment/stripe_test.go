package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewStripeProvider(StripeOptions{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		APIURL:        srv.URL,
	})
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	var form url.Values
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cs_test_1",
			"object": "checkout.session",
			"url": "https://checkout.stripe.com/c/pay/cs_test_1",
			"client_reference_id": "ref-1",
			"status": "open",
			"payment_status": "unpaid",
			"amount_total": 2500,
			"currency": "usd",
			"expires_at": 1700001800,
			"metadata": {"walletId": "w-1"}
		}`)
	})

	session, err := provider.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{
		Amount:            2500,
		Currency:          "USD",
		ProductName:       "Wallet Top-up",
		ClientReferenceID: "ref-1",
		ExpiresAt:         time.Unix(1700001800, 0),
		SuccessURL:        "https://app.example.com/wallet?payment=success",
		CancelURL:         "https://app.example.com/wallet?payment=cancelled",
		Metadata:          map[string]string{"walletId": "w-1", "type": "wallet_topup"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)
	assert.Equal(t, int64(2500), session.AmountTotal)
	assert.Equal(t, "USD", session.Currency)
	assert.Equal(t, "w-1", session.Metadata["walletId"])

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "2500", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Wallet Top-up", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "ref-1", form.Get("client_reference_id"))
	assert.Equal(t, "1700001800", form.Get("expires_at"))
	assert.Equal(t, "wallet_topup", form.Get("metadata[type]"))
	assert.Equal(t, "w-1", form.Get("payment_intent_data[metadata][walletId]"))
}

func TestStripeProvider_GetCheckoutSession_NotFound(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such checkout.session"}}`)
	})

	_, err := provider.GetCheckoutSession(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStripeProvider_GetCheckoutSession(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_2", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cs_test_2", "object": "checkout.session", "status": "complete",
			"payment_status": "paid", "amount_total": 1000, "currency": "usd", "payment_intent": "pi_2"}`)
	})

	session, err := provider.GetCheckoutSession(context.Background(), "cs_test_2")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusComplete, session.Status)
	assert.True(t, session.IsPaid())
	assert.Equal(t, "pi_2", session.PaymentIntentID)
}

func TestStripeProvider_ExpireCheckoutSession(t *testing.T) {
	called := false
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/v1/checkout/sessions/cs_test_3/expire", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cs_test_3", "object": "checkout.session", "status": "expired"}`)
	})

	require.NoError(t, provider.ExpireCheckoutSession(context.Background(), "cs_test_3"))
	assert.True(t, called)
}

func signedPayload(t *testing.T, body map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestStripeProvider_ConstructEvent(t *testing.T) {
	provider := NewStripeProvider(StripeOptions{SecretKey: "sk_test", WebhookSecret: testWebhookSecret})

	t.Run("checkout session", func(t *testing.T) {
		payload, header := signedPayload(t, map[string]interface{}{
			"id":     "evt_1",
			"object": "event",
			"type":   EventCheckoutSessionCompleted,
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":                  "cs_1",
					"object":              "checkout.session",
					"client_reference_id": "ref-1",
					"payment_status":      "paid",
					"status":              "complete",
					"amount_total":        2500,
					"currency":            "usd",
					"payment_intent":      "pi_1",
					"metadata":            map[string]string{"walletId": "w-1"},
				},
			},
		})

		event, err := provider.ConstructEvent(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.EventID)
		require.NotNil(t, event.Session)
		assert.Equal(t, "cs_1", event.Session.ID)
		assert.Equal(t, "pi_1", event.Session.PaymentIntentID)
		assert.Equal(t, int64(2500), event.Session.AmountTotal)
		assert.Nil(t, event.PaymentIntent)
	})

	t.Run("payment intent", func(t *testing.T) {
		payload, header := signedPayload(t, map[string]interface{}{
			"id":     "evt_2",
			"object": "event",
			"type":   EventPaymentIntentPaymentFailed,
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":                 "pi_9",
					"object":             "payment_intent",
					"status":             "requires_payment_method",
					"metadata":           map[string]string{"clientReferenceId": "ref-9"},
					"last_payment_error": map[string]string{"message": "Your card was declined."},
				},
			},
		})

		event, err := provider.ConstructEvent(payload, header)
		require.NoError(t, err)
		require.NotNil(t, event.PaymentIntent)
		assert.Equal(t, "pi_9", event.PaymentIntent.ID)
		assert.Equal(t, "ref-9", event.PaymentIntent.Metadata["clientReferenceId"])
		assert.Equal(t, "Your card was declined.", event.PaymentIntent.FailureMessage)
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedPayload(t, map[string]interface{}{"id": "evt_3", "object": "event", "type": "ping"})

		_, err := provider.ConstructEvent(payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unknown type", func(t *testing.T) {
		payload, header := signedPayload(t, map[string]interface{}{
			"id":     "evt_4",
			"object": "event",
			"type":   "customer.created",
			"data":   map[string]interface{}{"object": map[string]interface{}{"id": "cus_1"}},
		})

		event, err := provider.ConstructEvent(payload, header)
		require.NoError(t, err)
		assert.Nil(t, event.Session)
		assert.Nil(t, event.PaymentIntent)
	})
}
