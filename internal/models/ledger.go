package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopUpRequest is the body of a checkout request. Amount is in minor units.
type TopUpRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	UserID   string `json:"userId"`
	WalletID string `json:"walletId"`
}

type TopUpSession struct {
	SessionID         string          `json:"sessionId"`
	URL               string          `json:"url"`
	ClientReferenceID string          `json:"clientReferenceId"`
	ExpiresAt         int64           `json:"expiresAt"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	TransactionID     uuid.UUID       `json:"transactionId"`
	LedgerAmount      decimal.Decimal `json:"ledgerAmount"`
}

// TopUpCompletion carries what the reconciler knows when a session is paid.
type TopUpCompletion struct {
	SessionID       string
	PaymentIntentID string
	EventID         string
	AmountTotal     int64
}

// LedgerResult is returned by every atomic ledger operation.
type LedgerResult struct {
	Transaction *WalletTransaction `json:"transaction"`
	Wallet      *Wallet            `json:"wallet,omitempty"`
	Duplicate   bool               `json:"duplicate"`
}

type TransferRequest struct {
	FromWalletID string          `json:"fromWalletId"`
	ToWalletID   string          `json:"toWalletId"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

// TransferCommand is a validated TransferRequest.
type TransferCommand struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       decimal.Decimal
	Description  string
	Reference    string
	RequestID    string
}

type TransferResult struct {
	TransferReference   string             `json:"transferReference"`
	FromWallet          *WalletBalance     `json:"fromWallet"`
	ToWallet            *WalletBalance     `json:"toWallet"`
	DebitTransactionID  uuid.UUID          `json:"debitTransactionId"`
	CreditTransactionID uuid.UUID          `json:"creditTransactionId"`
	Debit               *WalletTransaction `json:"-"`
	Credit              *WalletTransaction `json:"-"`
}

type OrderCompletionRequest struct {
	DriverID string          `json:"driverId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type OrderCredit struct {
	OrderID   string
	DriverID  uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	RequestID string
}

// PaymentStatusView is the read-only composite served to polling clients.
type PaymentStatusView struct {
	SessionID     string             `json:"sessionId"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"paymentStatus"`
	AmountTotal   int64              `json:"amountTotal"`
	Currency      string             `json:"currency"`
	ExpiresAt     int64              `json:"expiresAt"`
	Transaction   *WalletTransaction `json:"transaction"`
	Wallet        *WalletBalance     `json:"wallet,omitempty"`
}
