package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCheckoutCreated  AuditAction = "checkout_created"
	AuditActionCheckoutOrphaned AuditAction = "checkout_orphaned"
	AuditActionWebhookReceived  AuditAction = "webhook_received"
	AuditActionTopUpCompleted   AuditAction = "top_up_completed"
	AuditActionTopUpFinalized   AuditAction = "top_up_finalized"
	AuditActionTransfer         AuditAction = "transfer"
	AuditActionOrderCredit      AuditAction = "order_credit"
)

// AuditLog is an append-only trace of a ledger-affecting decision, kept outside the
// ledger database so operators can follow a payment across Stripe and the wallet tables.
type AuditLog struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Action          AuditAction        `json:"action" bson:"action"`
	Outcome         string             `json:"outcome" bson:"outcome"`
	UserID          string             `json:"user_id,omitempty" bson:"user_id,omitempty"`
	WalletID        string             `json:"wallet_id,omitempty" bson:"wallet_id,omitempty"`
	TransactionID   string             `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	EventID         string             `json:"event_id,omitempty" bson:"event_id,omitempty"`
	EventType       string             `json:"event_type,omitempty" bson:"event_type,omitempty"`
	SessionID       string             `json:"session_id,omitempty" bson:"session_id,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty" bson:"payment_intent_id,omitempty"`
	RequestID       string             `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Amount          string             `json:"amount,omitempty" bson:"amount,omitempty"`
	Details         map[string]string  `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}
