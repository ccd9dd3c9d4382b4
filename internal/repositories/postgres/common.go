package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	walletColumns = `id, user_id, user_type, balance, currency, created_at, updated_at`

	transactionColumns = `id, wallet_id, user_id, amount, type, status, reference,
		stripe_session_id, stripe_payment_intent_id, description, metadata,
		transaction_date, created_at, updated_at`

	uniqueViolation = "23505"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func getWallet(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := sqlx.GetContext(ctx, q, &wallet, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("wallet: %w", interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func getTransaction(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	if err := sqlx.GetContext(ctx, q, &txn, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction: %w", interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Wallet, error) {
	return getWallet(ctx, tx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

// adjustBalance applies delta in the database. The balance >= 0 check
// constraint rejects any update that would overdraw the wallet.
func adjustBalance(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, delta decimal.Decimal, now time.Time) (*models.Wallet, error) {
	return getWallet(ctx, tx, `
		UPDATE wallets SET balance = balance + $2, updated_at = $3
		WHERE id = $1
		RETURNING `+walletColumns, walletID, delta, now)
}

func insertTransaction(ctx context.Context, e sqlx.ExecerContext, t *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			id, wallet_id, user_id, amount, type, status, reference,
			stripe_session_id, stripe_payment_intent_id, description, metadata,
			transaction_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := e.ExecContext(ctx, query,
		t.ID, t.WalletID, t.UserID, t.Amount, t.Type, t.Status, t.Reference,
		t.StripeSessionID, t.StripePaymentIntentID, t.Description, t.Metadata,
		t.TransactionDate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", t.Reference, interfaces.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}
