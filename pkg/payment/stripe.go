package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API base URL.
	APIURL            string
	MaxNetworkRetries int64
}

func NewStripeProvider(opts StripeOptions) *StripeProvider {
	var backends *stripe.Backends
	if opts.APIURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(opts.APIURL),
			MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &StripeProvider{
		client:        client.New(opts.SecretKey, backends),
		webhookSecret: opts.WebhookSecret,
	}
}

func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, request *CheckoutSessionRequest) (*CheckoutSession, error) {
	currency := strings.ToLower(request.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(request.ProductName),
					},
					UnitAmount: stripe.Int64(request.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(request.SuccessURL),
		CancelURL:         stripe.String(request.CancelURL),
		ClientReferenceID: stripe.String(request.ClientReferenceID),
		ExpiresAt:         stripe.Int64(request.ExpiresAt.Unix()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: request.Metadata,
		},
	}
	params.Context = ctx
	if request.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(request.CustomerEmail)
	}
	if request.IdempotencyKey != "" {
		params.SetIdempotencyKey(request.IdempotencyKey)
	}
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return convertStripeSession(session), nil
}

func (s *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := s.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return convertStripeSession(session), nil
}

func (s *StripeProvider) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := s.client.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("failed to expire checkout session: %w", err)
	}
	return nil
}

func (s *StripeProvider) ConstructEvent(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		CreatedAt: event.Created,
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.EventType {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSucceeded,
		EventCheckoutSessionAsyncPaymentFailed, EventCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}
		out.Session = convertStripeSession(&session)
	case EventPaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
		}
		out.PaymentIntent = convertStripePaymentIntent(&intent)
	}
	return out, nil
}

func convertStripeSession(session *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                session.ID,
		URL:               session.URL,
		ClientReferenceID: session.ClientReferenceID,
		Status:            string(session.Status),
		PaymentStatus:     string(session.PaymentStatus),
		AmountTotal:       session.AmountTotal,
		Currency:          strings.ToUpper(string(session.Currency)),
		ExpiresAt:         session.ExpiresAt,
		Metadata:          session.Metadata,
	}
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

func convertStripePaymentIntent(intent *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:       intent.ID,
		Status:   string(intent.Status),
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
		Metadata: intent.Metadata,
	}
	if intent.LastPaymentError != nil {
		out.FailureMessage = intent.LastPaymentError.Msg
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
