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

type OrderService interface {
	// CompleteOrder credits the assigned driver with the order price. Calling
	// it again for the same order returns the first credit flagged Duplicate.
	CompleteOrder(ctx context.Context, caller *models.Caller, orderID string, request *models.OrderCompletionRequest) (*models.LedgerResult, error)
}

type orderService struct {
	ledgerRepo interfaces.LedgerRepository
	realtime   RealtimeService
	audit      AuditService
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewOrderService(
	ledgerRepo interfaces.LedgerRepository,
	realtime RealtimeService,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) OrderService {
	return &orderService{
		ledgerRepo: ledgerRepo,
		realtime:   realtime,
		audit:      audit,
		metrics:    m,
		logger:     log,
	}
}

func (s *orderService) CompleteOrder(ctx context.Context, caller *models.Caller, orderID string, request *models.OrderCompletionRequest) (*models.LedgerResult, error) {
	if caller == nil {
		return nil, NewUnauthorizedError()
	}
	if !caller.IsPrivileged() {
		return nil, NewForbiddenError("only support staff or services can complete orders")
	}

	orderID = strings.TrimSpace(orderID)
	if errs := validators.ValidateOrderCompletion(orderID, request); len(errs) > 0 {
		return nil, NewValidationError(errs.ToMap())
	}
	currency, _ := utils.NormalizeCurrency(request.Currency)

	credit := &models.OrderCredit{
		OrderID:   orderID,
		DriverID:  uuid.MustParse(request.DriverID),
		Amount:    request.Amount,
		Currency:  currency,
		RequestID: logger.RequestIDFromContext(ctx),
	}
	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":  orderID,
		"driver_id": request.DriverID,
		"amount":    request.Amount.StringFixed(2),
	})

	result, err := s.ledgerRepo.CreditOrderEarnings(ctx, credit)
	if err != nil {
		s.metrics.LedgerOperation("order_credit", OutcomeError)
		log.WithError(err).Error("failed to credit driver earnings")
		return nil, fromRepositoryError(err, "wallet")
	}

	if result.Duplicate {
		s.metrics.LedgerOperation("order_credit", OutcomeDuplicate)
		log.WithField("transaction_id", result.Transaction.ID.String()).Info("order already credited")
		return result, nil
	}

	s.metrics.LedgerOperation("order_credit", OutcomeCompleted)
	log.LogWalletEvent(result.Wallet.ID.String(), utils.EventOrderCredited, map[string]interface{}{
		"transaction_id": result.Transaction.ID.String(),
		"balance":        result.Wallet.Balance.StringFixed(2),
	})
	s.audit.Record(ctx, &models.AuditLog{
		Action:        models.AuditActionOrderCredit,
		Outcome:       OutcomeCompleted,
		UserID:        result.Wallet.UserID.String(),
		WalletID:      result.Wallet.ID.String(),
		TransactionID: result.Transaction.ID.String(),
		Amount:        result.Transaction.Amount.StringFixed(2),
		Details:       map[string]string{"order_id": orderID},
	})
	s.realtime.PublishWalletUpdate(ctx, utils.EventOrderCredited, result.Wallet, result.Transaction)

	return result, nil
}
