package services

import (
	"context"
	"strings"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/internal/validators"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"

	"github.com/google/uuid"
)

type TransferService interface {
	// Transfer moves funds between two wallets of the same currency. Both
	// balances and both ledger rows change in one database transaction.
	Transfer(ctx context.Context, caller *models.Caller, request *models.TransferRequest) (*models.TransferResult, error)
}

type transferService struct {
	walletRepo interfaces.WalletRepository
	ledgerRepo interfaces.LedgerRepository
	realtime   RealtimeService
	audit      AuditService
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewTransferService(
	walletRepo interfaces.WalletRepository,
	ledgerRepo interfaces.LedgerRepository,
	realtime RealtimeService,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) TransferService {
	return &transferService{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		realtime:   realtime,
		audit:      audit,
		metrics:    m,
		logger:     log,
	}
}

func (s *transferService) Transfer(ctx context.Context, caller *models.Caller, request *models.TransferRequest) (*models.TransferResult, error) {
	if errs := validators.ValidateTransfer(request); len(errs) > 0 {
		return nil, NewValidationError(errs.ToMap())
	}
	if caller == nil {
		return nil, NewUnauthorizedError()
	}

	fromID := uuid.MustParse(request.FromWalletID)
	toID := uuid.MustParse(request.ToWalletID)

	from, err := s.walletRepo.GetByID(ctx, fromID)
	if err != nil {
		return nil, fromRepositoryError(err, "source wallet")
	}
	if !caller.CanAccess(from.UserID) {
		s.logger.WithContext(ctx).LogSecurityEvent("transfer_not_owner", "medium", map[string]interface{}{
			"caller_id":      caller.UserID.String(),
			"from_wallet_id": from.ID.String(),
		})
		return nil, NewForbiddenError("cannot transfer from another user's wallet")
	}
	to, err := s.walletRepo.GetByID(ctx, toID)
	if err != nil {
		return nil, fromRepositoryError(err, "destination wallet")
	}
	if from.Currency != to.Currency {
		return nil, NewCurrencyMismatchError(from.Currency, to.Currency)
	}
	if errs := validators.ValidateAmountForCurrency(request.Amount, from.Currency); len(errs) > 0 {
		return nil, NewValidationError(errs.ToMap())
	}

	description := validators.SanitizeInput(request.Description)
	if description == "" {
		description = "Wallet transfer"
	}
	cmd := &models.TransferCommand{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       request.Amount,
		Description:  description,
		Reference:    utils.TransferRefPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		RequestID:    logger.RequestIDFromContext(ctx),
	}
	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"transfer_reference": cmd.Reference,
		"from_wallet_id":     from.ID.String(),
		"to_wallet_id":       to.ID.String(),
		"amount":             cmd.Amount.StringFixed(2),
	})

	result, err := s.ledgerRepo.Transfer(ctx, cmd)
	if err != nil {
		appErr := fromRepositoryError(err, "wallet")
		s.metrics.LedgerOperation("transfer", strings.ToLower(appErr.Code))
		log.WithError(err).Warn("transfer rejected")
		return nil, appErr
	}

	s.metrics.LedgerOperation("transfer", OutcomeCompleted)
	log.LogWalletEvent(from.ID.String(), utils.EventTransferCompleted, map[string]interface{}{
		"debit_transaction_id":  result.DebitTransactionID.String(),
		"credit_transaction_id": result.CreditTransactionID.String(),
	})
	s.audit.Record(ctx, &models.AuditLog{
		Action:        models.AuditActionTransfer,
		Outcome:       OutcomeCompleted,
		UserID:        from.UserID.String(),
		WalletID:      from.ID.String(),
		TransactionID: result.DebitTransactionID.String(),
		Amount:        cmd.Amount.StringFixed(2),
		Details: map[string]string{
			"transfer_reference":    cmd.Reference,
			"to_wallet_id":          to.ID.String(),
			"credit_transaction_id": result.CreditTransactionID.String(),
		},
	})

	from.Balance, to.Balance = result.FromWallet.Balance, result.ToWallet.Balance
	s.realtime.PublishWalletUpdate(ctx, utils.EventWalletDebited, from, result.Debit)
	s.realtime.PublishWalletUpdate(ctx, utils.EventWalletCredited, to, result.Credit)

	return result, nil
}
