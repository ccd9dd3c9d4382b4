package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type walletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) interfaces.WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return getWallet(ctx, r.db, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

func (r *walletRepository) GetByUser(ctx context.Context, userID uuid.UUID, userType models.UserType) (*models.Wallet, error) {
	return getWallet(ctx, r.db, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND user_type = $2`, userID, userType)
}

func (r *walletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, userType models.UserType, currency string) (*models.Wallet, error) {
	if err := ensureWallet(ctx, r.db, userID, userType, currency); err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID, userType)
}

// ensureWallet inserts a zero-balance wallet unless one already exists for the pair.
func ensureWallet(ctx context.Context, e sqlx.ExecerContext, userID uuid.UUID, userType models.UserType, currency string) error {
	now := time.Now().UTC()
	_, err := e.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, user_type, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $5)
		ON CONFLICT (user_id, user_type) DO NOTHING`,
		uuid.New(), userID, userType, strings.ToUpper(currency), now,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}
