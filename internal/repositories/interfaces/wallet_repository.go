package interfaces

import (
	"context"

	"ridewallet/internal/models"

	"github.com/google/uuid"
)

type WalletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetByUser(ctx context.Context, userID uuid.UUID, userType models.UserType) (*models.Wallet, error)
	// GetOrCreate never creates a second wallet for the same (user, type) pair.
	GetOrCreate(ctx context.Context, userID uuid.UUID, userType models.UserType, currency string) (*models.Wallet, error)
}
