package interfaces

import (
	"context"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"

	"github.com/google/uuid"
)

type TransactionRepository interface {
	// Create inserts a ledger row. A second row for the same checkout session
	// returns ErrDuplicate.
	Create(ctx context.Context, tx *models.WalletTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.WalletTransaction, error)
	// GetByPaymentIntentID prefers a completed row when several share the intent.
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.WalletTransaction, error)
	GetByReference(ctx context.Context, reference string) (*models.WalletTransaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error)
	// ListStaleUnsettled returns deposit rows still pending or failed, oldest first.
	ListStaleUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.WalletTransaction, error)
}
