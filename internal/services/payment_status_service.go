package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/pkg/cache"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/payment"

	"github.com/google/uuid"
)

type PaymentStatusService interface {
	// GetPaymentStatus combines the processor's live session with the local
	// ledger entry and wallet balance. It never writes to the ledger.
	GetPaymentStatus(ctx context.Context, caller *models.Caller, sessionID string) (*models.PaymentStatusView, error)
}

// cachedPaymentStatus holds a settled view without the wallet, whose
// balance keeps moving after the top-up is final.
type cachedPaymentStatus struct {
	OwnerID  string                    `json:"ownerId"`
	WalletID string                    `json:"walletId"`
	View     *models.PaymentStatusView `json:"view"`
}

type paymentStatusService struct {
	provider        payment.CheckoutProvider
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	cache           CacheService
	logger          *logger.Logger
	cacheTTL        time.Duration
}

func NewPaymentStatusService(
	provider payment.CheckoutProvider,
	walletRepo interfaces.WalletRepository,
	transactionRepo interfaces.TransactionRepository,
	cache CacheService,
	log *logger.Logger,
	cacheTTL time.Duration,
) PaymentStatusService {
	return &paymentStatusService{
		provider:        provider,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		cache:           cache,
		logger:          log,
		cacheTTL:        cacheTTL,
	}
}

func (s *paymentStatusService) GetPaymentStatus(ctx context.Context, caller *models.Caller, sessionID string) (*models.PaymentStatusView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, NewValidationError(map[string]string{"session_id": "session_id is required"})
	}
	if caller == nil {
		return nil, NewUnauthorizedError()
	}

	cacheKey := utils.CachePaymentStatusPrefix + sessionID
	var cached cachedPaymentStatus
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil && cached.View != nil {
		if !s.canView(caller, cached.OwnerID) {
			return nil, NewForbiddenError("")
		}
		view := cached.View
		if err := s.attachWallet(ctx, view, cached.WalletID); err != nil {
			return nil, err
		}
		return view, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Warn("failed to read cached payment status")
	}

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, NewNotFoundError("checkout session")
		}
		s.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Error("failed to fetch checkout session")
		return nil, NewPaymentProviderError(err)
	}

	view := &models.PaymentStatusView{
		SessionID:     session.ID,
		Status:        session.Status,
		PaymentStatus: session.PaymentStatus,
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
		ExpiresAt:     session.ExpiresAt,
	}

	txn, err := s.transactionRepo.GetBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		view.Transaction = txn
	case !errors.Is(err, interfaces.ErrNotFound):
		return nil, NewInternalError(err)
	}

	ownerID := session.Metadata["userId"]
	if ownerID == "" && txn != nil {
		ownerID = txn.UserID.String()
	}
	if !s.canView(caller, ownerID) {
		return nil, NewForbiddenError("")
	}

	walletID := session.Metadata["walletId"]
	if s.cacheTTL > 0 && isSettled(session, txn) {
		entry := cachedPaymentStatus{OwnerID: ownerID, WalletID: walletID, View: view}
		if err := s.cache.Set(ctx, cacheKey, entry, s.cacheTTL); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Warn("failed to cache payment status")
		}
	}

	if err := s.attachWallet(ctx, view, walletID); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *paymentStatusService) attachWallet(ctx context.Context, view *models.PaymentStatusView, walletID string) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil
	}
	wallet, err := s.walletRepo.GetByID(ctx, id)
	switch {
	case err == nil:
		view.Wallet = wallet.BalanceView()
	case !errors.Is(err, interfaces.ErrNotFound):
		return NewInternalError(err)
	}
	return nil
}

func (s *paymentStatusService) canView(caller *models.Caller, ownerID string) bool {
	if caller.IsPrivileged() {
		return true
	}
	owner, err := uuid.Parse(ownerID)
	return err == nil && owner == caller.UserID
}

// isSettled reports whether neither side can change any more, so the view is safe to cache.
func isSettled(session *payment.CheckoutSession, txn *models.WalletTransaction) bool {
	if txn == nil || !txn.Status.IsTerminal() {
		return false
	}
	return session.Status == payment.SessionStatusComplete || session.Status == payment.SessionStatusExpired
}
