package services

import (
	"context"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/internal/validators"

	"github.com/google/uuid"
)

type WalletService interface {
	// GetMyWallet returns the caller's wallet for userType, creating an empty one on first use.
	GetMyWallet(ctx context.Context, caller *models.Caller, userType string) (*models.Wallet, error)
	ListTransactions(ctx context.Context, caller *models.Caller, walletID string, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error)
}

type walletService struct {
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	currency        string
}

func NewWalletService(walletRepo interfaces.WalletRepository, transactionRepo interfaces.TransactionRepository, currency string) WalletService {
	if normalized, ok := utils.NormalizeCurrency(currency); ok {
		currency = normalized
	} else {
		currency = utils.DefaultCurrency
	}
	return &walletService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		currency:        currency,
	}
}

func (s *walletService) GetMyWallet(ctx context.Context, caller *models.Caller, userType string) (*models.Wallet, error) {
	if caller == nil || caller.UserID == uuid.Nil {
		return nil, NewUnauthorizedError()
	}

	if userType == "" {
		userType = caller.UserType
	}
	if userType == "" {
		userType = string(models.UserTypeCustomer)
	}
	parsed, err := models.ParseUserType(userType)
	if err != nil {
		return nil, NewValidationError(map[string]string{"user_type": "user_type must be customer or driver"})
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, caller.UserID, parsed, s.currency)
	if err != nil {
		return nil, fromRepositoryError(err, "wallet")
	}
	return wallet, nil
}

func (s *walletService) ListTransactions(ctx context.Context, caller *models.Caller, walletID string, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error) {
	if caller == nil {
		return nil, 0, NewUnauthorizedError()
	}
	if !validators.IsValidUUID(walletID) {
		return nil, 0, NewValidationError(map[string]string{"id": "Invalid ID format"})
	}

	wallet, err := s.walletRepo.GetByID(ctx, uuid.MustParse(walletID))
	if err != nil {
		return nil, 0, fromRepositoryError(err, "wallet")
	}
	if !caller.CanAccess(wallet.UserID) {
		return nil, 0, NewForbiddenError("")
	}

	txns, total, err := s.transactionRepo.ListByWallet(ctx, wallet.ID, params)
	if err != nil {
		return nil, 0, NewInternalError(err)
	}
	return txns, total, nil
}
