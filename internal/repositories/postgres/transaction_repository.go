package postgres

import (
	"context"
	"fmt"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) interfaces.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.WalletTransaction) error {
	return insertTransaction(ctx, r.db, tx)
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	return getTransaction(ctx, r.db, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = $1`, id)
}

func (r *transactionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.WalletTransaction, error) {
	return getTransaction(ctx, r.db, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE stripe_session_id = $1`, sessionID)
}

func (r *transactionRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.WalletTransaction, error) {
	return getTransaction(ctx, r.db, `
		SELECT `+transactionColumns+` FROM wallet_transactions
		WHERE stripe_payment_intent_id = $1
		ORDER BY (status = 'completed') DESC, created_at DESC
		LIMIT 1`, paymentIntentID)
}

func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	return getTransaction(ctx, r.db, `
		SELECT `+transactionColumns+` FROM wallet_transactions
		WHERE reference = $1
		ORDER BY created_at ASC
		LIMIT 1`, reference)
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	order := "DESC"
	if params.Order == "asc" {
		order = "ASC"
	}

	txns := []*models.WalletTransaction{}
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY transaction_date ` + order + `, id ` + order + `
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &txns, query, walletID, params.GetLimit(), params.GetSkip()); err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, total, nil
}

func (r *transactionRepository) ListStaleUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.WalletTransaction, error) {
	txns := []*models.WalletTransaction{}
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE status IN ('pending', 'failed') AND type = 'deposit'
			AND stripe_session_id IS NOT NULL AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &txns, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale unsettled transactions: %w", err)
	}
	return txns, nil
}
