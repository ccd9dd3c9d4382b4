package utils

import "time"

// Application Constants
const (
	AppName    = "RideWallet"
	AppVersion = "1.0.0"

	DefaultCurrency = "USD"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Top-up Constants
	MinTopUpMinor        = 100
	CheckoutSessionTTL   = 30 * time.Minute
	TopUpProductName     = "Wallet Top-up"
	TopUpMetadataType    = "wallet_topup"
	TransferRefPrefix    = "transfer_"
	OrderCreditRefPrefix = "order_"
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CachePaymentStatusPrefix = "payment_status:"
	CacheStripeEventPrefix   = "stripe_event:"
)

// Pub/Sub Channels
const (
	ChannelWalletUpdates = "wallet_updates"
)

// Event Types
const (
	EventWalletCredited    = "wallet_credited"
	EventWalletDebited     = "wallet_debited"
	EventTopUpCompleted    = "top_up_completed"
	EventTopUpFailed       = "top_up_failed"
	EventTopUpExpired      = "top_up_expired"
	EventTransferCompleted = "transfer_completed"
	EventOrderCredited     = "order_credited"
)
