package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSessionNotFound  = errors.New("checkout session not found")
)

// Webhook event types the reconciler understands.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired               = "checkout.session.expired"
	EventPaymentIntentPaymentFailed           = "payment_intent.payment_failed"
)

// Checkout session states as reported by the processor.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"

	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// CheckoutProvider is a hosted-checkout payment processor.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, request *CheckoutSessionRequest) (*CheckoutSession, error)
	// GetCheckoutSession returns ErrSessionNotFound for unknown ids.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	// ConstructEvent authenticates a webhook body. Any failure wraps ErrInvalidSignature.
	ConstructEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutSessionRequest describes a single-line-item payment session. Amount is in minor units.
type CheckoutSessionRequest struct {
	Amount            int64
	Currency          string
	ProductName       string
	ClientReferenceID string
	ExpiresAt         time.Time
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	Metadata          map[string]string
	IdempotencyKey    string
}

type CheckoutSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	ClientReferenceID string            `json:"client_reference_id"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ExpiresAt         int64             `json:"expires_at"`
	PaymentIntentID   string            `json:"payment_intent_id,omitempty"`
	Metadata          map[string]string `json:"metadata"`
}

// IsPaid reports whether funds were captured for the session.
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

type PaymentIntent struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	FailureMessage string            `json:"failure_message,omitempty"`
}

// WebhookEvent is an authenticated processor event. Exactly one of Session and
// PaymentIntent is set for the types listed above; both are nil otherwise.
type WebhookEvent struct {
	EventID       string
	EventType     string
	CreatedAt     int64
	Session       *CheckoutSession
	PaymentIntent *PaymentIntent
}
