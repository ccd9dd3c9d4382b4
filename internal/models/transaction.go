package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string
type TransactionStatus string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeEarnings   TransactionType = "earnings"

	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

func ParseTransactionType(value string) (TransactionType, error) {
	switch TransactionType(value) {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePayment, TransactionTypeEarnings:
		return TransactionType(value), nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", value)
	}
}

// Sign is +1 for types that credit the wallet and -1 for types that debit it.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionTypeDeposit, TransactionTypeEarnings:
		return 1
	case TransactionTypeWithdrawal, TransactionTypePayment:
		return -1
	default:
		panic(fmt.Sprintf("unhandled transaction type %q", string(t)))
	}
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	switch TransactionStatus(value) {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusExpired:
		return TransactionStatus(value), nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", value)
	}
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusExpired:
		return true
	case TransactionStatusPending, TransactionStatusFailed:
		return false
	default:
		panic(fmt.Sprintf("unhandled transaction status %q", string(s)))
	}
}

// CanTransitionTo encodes the ledger state machine. A failed attempt leaves the checkout
// session open, so a failed row may still complete or expire with the session.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusCompleted || next == TransactionStatusFailed || next == TransactionStatusExpired
	case TransactionStatusFailed:
		return next == TransactionStatusCompleted || next == TransactionStatusExpired
	case TransactionStatusCompleted, TransactionStatusExpired:
		return false
	default:
		return false
	}
}

// Metadata keys shared by the ledger writers.
const (
	MetaOrderID           = "order_id"
	MetaEventID           = "event_id"
	MetaRequestID         = "request_id"
	MetaClientReferenceID = "client_reference_id"
	MetaAmountMinor       = "amount_minor"
	MetaTransferReference = "transfer_reference"
	MetaFromWalletID      = "from_wallet_id"
	MetaToWalletID        = "to_wallet_id"
	MetaPartnerUserID     = "partner_user_id"
	MetaFailureReason     = "failure_reason"
	MetaSource            = "source"
)

// Metadata is stored as a jsonb object.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}

	out := Metadata{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

type WalletTransaction struct {
	ID                    uuid.UUID         `json:"id" db:"id"`
	WalletID              uuid.UUID         `json:"wallet_id" db:"wallet_id"`
	UserID                uuid.UUID         `json:"user_id" db:"user_id"`
	Amount                decimal.Decimal   `json:"amount" db:"amount"`
	Type                  TransactionType   `json:"type" db:"type"`
	Status                TransactionStatus `json:"status" db:"status"`
	Reference             string            `json:"reference" db:"reference"`
	StripeSessionID       *string           `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	StripePaymentIntentID *string           `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	Description           string            `json:"description" db:"description"`
	Metadata              Metadata          `json:"metadata" db:"metadata"`
	TransactionDate       time.Time         `json:"transaction_date" db:"transaction_date"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}
