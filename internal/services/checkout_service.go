package services

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ridewallet/internal/config"
	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/internal/validators"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"

	"github.com/google/uuid"
)

type CheckoutService interface {
	// CreateTopUpSession opens a hosted checkout session and records the
	// matching pending deposit. Either both exist afterwards or neither is payable.
	CreateTopUpSession(ctx context.Context, caller *models.Caller, request *models.TopUpRequest) (*models.TopUpSession, error)
}

const sessionExpiryMargin = time.Minute

type checkoutService struct {
	provider        payment.CheckoutProvider
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	audit           AuditService
	metrics         *metrics.Metrics
	logger          *logger.Logger
	config          *config.PaymentConfig
	publicURL       string
	now             func() time.Time
}

func NewCheckoutService(
	cfg *config.PaymentConfig,
	publicURL string,
	provider payment.CheckoutProvider,
	walletRepo interfaces.WalletRepository,
	transactionRepo interfaces.TransactionRepository,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) CheckoutService {
	return &checkoutService{
		provider:        provider,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		audit:           audit,
		metrics:         m,
		logger:          log,
		config:          cfg,
		publicURL:       strings.TrimRight(publicURL, "/"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *checkoutService) CreateTopUpSession(ctx context.Context, caller *models.Caller, request *models.TopUpRequest) (*models.TopUpSession, error) {
	if errs := validators.ValidateTopUp(request, validators.TopUpLimits{
		MinMinor: s.config.MinTopUpMinor,
		MaxMinor: s.config.MaxTopUpMinor,
	}); len(errs) > 0 {
		return nil, NewValidationError(errs.ToMap())
	}

	if caller == nil {
		return nil, NewUnauthorizedError()
	}
	userID := uuid.MustParse(request.UserID)
	walletID := uuid.MustParse(request.WalletID)
	if caller.UserID != userID && caller.Role != models.RoleServiceRole {
		s.logger.WithContext(ctx).LogSecurityEvent("top_up_identity_mismatch", "medium", map[string]interface{}{
			"caller_id": caller.UserID.String(),
			"user_id":   request.UserID,
			"wallet_id": request.WalletID,
		})
		return nil, NewForbiddenError("cannot top up another user's wallet")
	}

	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, fromRepositoryError(err, "wallet")
	}
	if wallet.UserID != userID {
		return nil, NewForbiddenError("wallet does not belong to user")
	}
	currency, _ := utils.NormalizeCurrency(request.Currency)
	if wallet.Currency != currency {
		return nil, NewCurrencyMismatchError(wallet.Currency, currency)
	}

	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	now := s.now()
	ttl := s.config.SessionTTL
	if ttl <= 0 {
		ttl = utils.CheckoutSessionTTL
	}
	// The processor rejects expiries at or under its 30 minute floor, so the
	// session outlives the ledger window by a small margin.
	expiresAt := now.Add(ttl + sessionExpiryMargin)
	clientReferenceID := uuid.NewString()

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id":             request.UserID,
		"wallet_id":           request.WalletID,
		"client_reference_id": clientReferenceID,
		"amount_minor":        request.Amount,
		"currency":            currency,
	})

	session, err := s.provider.CreateCheckoutSession(ctx, &payment.CheckoutSessionRequest{
		Amount:            request.Amount,
		Currency:          currency,
		ProductName:       utils.TopUpProductName,
		ClientReferenceID: clientReferenceID,
		ExpiresAt:         expiresAt,
		SuccessURL:        s.publicURL + s.config.SuccessPath,
		CancelURL:         s.publicURL + s.config.CancelPath,
		CustomerEmail:     caller.Email,
		IdempotencyKey:    "wallet_topup_" + clientReferenceID,
		Metadata: map[string]string{
			"userId":            request.UserID,
			"walletId":          request.WalletID,
			"type":              utils.TopUpMetadataType,
			"amount":            strconv.FormatInt(request.Amount, 10),
			"currency":          currency,
			"requestId":         requestID,
			"clientReferenceId": clientReferenceID,
			"timestamp":         now.Format(time.RFC3339),
		},
	})
	if err != nil {
		s.metrics.LedgerOperation("checkout", OutcomeError)
		log.WithError(err).Error("failed to create checkout session")
		return nil, NewPaymentProviderError(err)
	}
	log = log.WithField("session_id", session.ID)

	sessionID := session.ID
	amount := utils.MinorToMajor(request.Amount, currency)
	txn := &models.WalletTransaction{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          wallet.UserID,
		Amount:          amount,
		Type:            models.TransactionTypeDeposit,
		Status:          models.TransactionStatusPending,
		Reference:       clientReferenceID,
		StripeSessionID: &sessionID,
		Description:     utils.TopUpProductName,
		Metadata: models.Metadata{
			models.MetaRequestID:         requestID,
			models.MetaClientReferenceID: clientReferenceID,
			models.MetaAmountMinor:       strconv.FormatInt(request.Amount, 10),
		},
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		log.WithError(err).Error("failed to record pending top-up, expiring session")
		s.metrics.LedgerOperation("checkout", "orphaned")

		outcome := "session_expired"
		expireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if expireErr := s.provider.ExpireCheckoutSession(expireCtx, session.ID); expireErr != nil {
			outcome = "expire_failed"
			log.WithError(expireErr).Error("failed to expire orphaned checkout session")
		}
		s.audit.Record(ctx, &models.AuditLog{
			Action:    models.AuditActionCheckoutOrphaned,
			Outcome:   outcome,
			UserID:    request.UserID,
			WalletID:  request.WalletID,
			SessionID: session.ID,
			RequestID: requestID,
			Amount:    amount.StringFixed(2),
			Details:   map[string]string{"error": err.Error()},
		})

		return nil, &AppError{
			Status:  http.StatusInternalServerError,
			Code:    CodeLedgerWriteFailed,
			Message: "failed to record top-up",
			Err:     err,
		}
	}

	s.metrics.LedgerOperation("checkout", "created")
	log.LogPaymentEvent("checkout_session_created", map[string]interface{}{
		"transaction_id": txn.ID.String(),
		"expires_at":     expiresAt.Unix(),
	})
	s.audit.Record(ctx, &models.AuditLog{
		Action:        models.AuditActionCheckoutCreated,
		Outcome:       "pending",
		UserID:        request.UserID,
		WalletID:      request.WalletID,
		TransactionID: txn.ID.String(),
		SessionID:     session.ID,
		RequestID:     requestID,
		Amount:        amount.StringFixed(2),
	})

	sessionExpiry := session.ExpiresAt
	if sessionExpiry == 0 {
		sessionExpiry = expiresAt.Unix()
	}
	return &models.TopUpSession{
		SessionID:         session.ID,
		URL:               session.URL,
		ClientReferenceID: clientReferenceID,
		ExpiresAt:         sessionExpiry,
		Amount:            request.Amount,
		Currency:          currency,
		TransactionID:     txn.ID,
		LedgerAmount:      amount,
	}, nil
}
