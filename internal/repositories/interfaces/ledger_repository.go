package interfaces

import (
	"context"

	"ridewallet/internal/models"

	"github.com/google/uuid"
)

// LedgerRepository holds the operations that move money. Each one runs in a
// single database transaction: the balance change and the ledger row change
// commit together or not at all.
type LedgerRepository interface {
	// CompleteTopUp credits the wallet of the pending deposit bound to the
	// session and marks it completed. An already completed row is returned
	// with Duplicate set and nothing is changed.
	CompleteTopUp(ctx context.Context, completion *models.TopUpCompletion) (*models.LedgerResult, error)

	// FinalizeTransaction moves a row to failed or expired without touching
	// the balance.
	FinalizeTransaction(ctx context.Context, id uuid.UUID, status models.TransactionStatus, meta models.Metadata) (*models.LedgerResult, error)

	// Transfer debits one wallet and credits another, recording a payment row
	// and an earnings row that share cmd.Reference. ErrInsufficientFunds
	// leaves both wallets untouched.
	Transfer(ctx context.Context, cmd *models.TransferCommand) (*models.TransferResult, error)

	// CreditOrderEarnings credits a driver once per order id.
	CreditOrderEarnings(ctx context.Context, credit *models.OrderCredit) (*models.LedgerResult, error)
}
