package services

import (
	"context"
	"errors"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"
)

// Reconcile outcomes, reported in metrics, logs and the audit trail.
const (
	OutcomeCompleted        = "completed"
	OutcomeFailed           = "failed"
	OutcomeExpired          = "expired"
	OutcomeDuplicate        = "duplicate"
	OutcomeReplayed         = "replayed"
	OutcomeNoMatch          = "no_match"
	OutcomeAlreadyFinal     = "already_final"
	OutcomeAwaitingPayment  = "awaiting_payment"
	OutcomeNotWalletTopUp   = "not_wallet_topup"
	OutcomeUnhandled        = "unhandled"
	OutcomeRejected         = "rejected"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeError            = "error"
)

// ReconcileResult describes what a reconcile step did to the ledger.
type ReconcileResult struct {
	Outcome     string
	Transaction *models.WalletTransaction
	Wallet      *models.Wallet
}

// TopUpReconciler applies processor session state to pending top-ups. It is
// shared by the webhook receiver and the stale-pending sweeper so both follow
// the same state machine.
type TopUpReconciler interface {
	CompleteSession(ctx context.Context, session *payment.CheckoutSession, eventID string) (*ReconcileResult, error)
	FinalizeSession(ctx context.Context, session *payment.CheckoutSession, status models.TransactionStatus, reason, eventID string) (*ReconcileResult, error)
	FailPaymentIntent(ctx context.Context, intent *payment.PaymentIntent, eventID string) (*ReconcileResult, error)
}

type topUpReconciler struct {
	transactionRepo interfaces.TransactionRepository
	ledgerRepo      interfaces.LedgerRepository
	cache           CacheService
	realtime        RealtimeService
	audit           AuditService
	metrics         *metrics.Metrics
	logger          *logger.Logger
}

func NewTopUpReconciler(
	transactionRepo interfaces.TransactionRepository,
	ledgerRepo interfaces.LedgerRepository,
	cache CacheService,
	realtime RealtimeService,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) TopUpReconciler {
	return &topUpReconciler{
		transactionRepo: transactionRepo,
		ledgerRepo:      ledgerRepo,
		cache:           cache,
		realtime:        realtime,
		audit:           audit,
		metrics:         m,
		logger:          log,
	}
}

func sessionFields(session *payment.CheckoutSession, eventID string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":          eventID,
		"session_id":        session.ID,
		"payment_intent_id": session.PaymentIntentID,
		"wallet_id":         session.Metadata["walletId"],
	}
}

func (r *topUpReconciler) CompleteSession(ctx context.Context, session *payment.CheckoutSession, eventID string) (*ReconcileResult, error) {
	log := r.logger.WithContext(ctx).WithFields(sessionFields(session, eventID))

	if session.PaymentIntentID != "" {
		existing, err := r.transactionRepo.GetByPaymentIntentID(ctx, session.PaymentIntentID)
		switch {
		case err == nil && existing.Status == models.TransactionStatusCompleted:
			log.WithField("transaction_id", existing.ID.String()).Info("payment intent already credited")
			return &ReconcileResult{Outcome: OutcomeDuplicate, Transaction: existing}, nil
		case err != nil && !errors.Is(err, interfaces.ErrNotFound):
			return nil, NewInternalError(err)
		}
	}

	pending, err := r.transactionRepo.GetBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			if session.Metadata["type"] != utils.TopUpMetadataType {
				return &ReconcileResult{Outcome: OutcomeNotWalletTopUp}, nil
			}
			// The checkout insert may not be visible yet; a non-2xx makes the processor retry.
			log.Warn("no ledger entry for paid top-up session")
			return nil, fromRepositoryError(err, "transaction")
		}
		return nil, NewInternalError(err)
	}

	if session.AmountTotal > 0 {
		if expected := utils.MajorToMinor(pending.Amount, session.Currency); expected != session.AmountTotal {
			log.WithFields(map[string]interface{}{
				"expected_minor": expected,
				"paid_minor":     session.AmountTotal,
			}).Warn("paid amount differs from ledger entry, crediting ledger amount")
		}
	}

	result, err := r.ledgerRepo.CompleteTopUp(ctx, &models.TopUpCompletion{
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
		EventID:         eventID,
		AmountTotal:     session.AmountTotal,
	})
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrDuplicate):
			log.WithError(err).Info("payment intent credited by another entry")
			r.metrics.LedgerOperation("complete_top_up", OutcomeDuplicate)
			return &ReconcileResult{Outcome: OutcomeDuplicate, Transaction: pending}, nil
		case errors.Is(err, interfaces.ErrInvalidTransition):
			// Paid but the entry is already terminal: acknowledge and leave it to an operator.
			log.WithError(err).WithField("transaction_id", pending.ID.String()).Error("paid session has a finalized ledger entry")
			r.metrics.LedgerOperation("complete_top_up", OutcomeRejected)
			r.audit.Record(ctx, &models.AuditLog{
				Action:          models.AuditActionTopUpCompleted,
				Outcome:         OutcomeRejected,
				UserID:          pending.UserID.String(),
				WalletID:        pending.WalletID.String(),
				TransactionID:   pending.ID.String(),
				EventID:         eventID,
				SessionID:       session.ID,
				PaymentIntentID: session.PaymentIntentID,
				Amount:          pending.Amount.StringFixed(2),
				Details:         map[string]string{"status": string(pending.Status)},
			})
			return &ReconcileResult{Outcome: OutcomeRejected, Transaction: pending}, nil
		}
		r.metrics.LedgerOperation("complete_top_up", OutcomeError)
		log.WithError(err).Error("failed to complete top-up")
		return nil, fromRepositoryError(err, "transaction")
	}

	if result.Duplicate {
		r.metrics.LedgerOperation("complete_top_up", OutcomeDuplicate)
		return &ReconcileResult{Outcome: OutcomeDuplicate, Transaction: result.Transaction, Wallet: result.Wallet}, nil
	}

	r.metrics.LedgerOperation("complete_top_up", OutcomeCompleted)
	r.logger.WithContext(ctx).LogWalletEvent(result.Wallet.ID.String(), utils.EventTopUpCompleted, map[string]interface{}{
		"transaction_id":    result.Transaction.ID.String(),
		"session_id":        session.ID,
		"payment_intent_id": session.PaymentIntentID,
		"event_id":          eventID,
		"amount":            result.Transaction.Amount.StringFixed(2),
		"balance":           result.Wallet.Balance.StringFixed(2),
	})
	r.audit.Record(ctx, &models.AuditLog{
		Action:          models.AuditActionTopUpCompleted,
		Outcome:         OutcomeCompleted,
		UserID:          result.Wallet.UserID.String(),
		WalletID:        result.Wallet.ID.String(),
		TransactionID:   result.Transaction.ID.String(),
		EventID:         eventID,
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
		Amount:          result.Transaction.Amount.StringFixed(2),
	})
	r.invalidateStatus(ctx, session.ID)
	r.realtime.PublishWalletUpdate(ctx, utils.EventTopUpCompleted, result.Wallet, result.Transaction)

	return &ReconcileResult{Outcome: OutcomeCompleted, Transaction: result.Transaction, Wallet: result.Wallet}, nil
}

func (r *topUpReconciler) FinalizeSession(ctx context.Context, session *payment.CheckoutSession, status models.TransactionStatus, reason, eventID string) (*ReconcileResult, error) {
	pending, err := r.transactionRepo.GetBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			r.logger.WithContext(ctx).WithFields(sessionFields(session, eventID)).Info("no ledger entry for session")
			return &ReconcileResult{Outcome: OutcomeNoMatch}, nil
		}
		return nil, NewInternalError(err)
	}
	return r.finalize(ctx, pending, status, reason, eventID, session.ID, session.PaymentIntentID)
}

func (r *topUpReconciler) FailPaymentIntent(ctx context.Context, intent *payment.PaymentIntent, eventID string) (*ReconcileResult, error) {
	log := r.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"event_id":          eventID,
		"payment_intent_id": intent.ID,
		"wallet_id":         intent.Metadata["walletId"],
	})

	txn, err := r.transactionRepo.GetByPaymentIntentID(ctx, intent.ID)
	if errors.Is(err, interfaces.ErrNotFound) {
		if ref := intent.Metadata["clientReferenceId"]; ref != "" {
			txn, err = r.transactionRepo.GetByReference(ctx, ref)
		}
	}
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			log.Info("no ledger entry for failed payment intent")
			return &ReconcileResult{Outcome: OutcomeNoMatch}, nil
		}
		return nil, NewInternalError(err)
	}

	reason := intent.FailureMessage
	if reason == "" {
		reason = "payment_failed"
	}
	sessionID := ""
	if txn.StripeSessionID != nil {
		sessionID = *txn.StripeSessionID
	}
	return r.finalize(ctx, txn, models.TransactionStatusFailed, reason, eventID, sessionID, intent.ID)
}

func (r *topUpReconciler) finalize(ctx context.Context, txn *models.WalletTransaction, status models.TransactionStatus, reason, eventID, sessionID, paymentIntentID string) (*ReconcileResult, error) {
	log := r.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"event_id":          eventID,
		"session_id":        sessionID,
		"payment_intent_id": paymentIntentID,
		"wallet_id":         txn.WalletID.String(),
		"transaction_id":    txn.ID.String(),
	})

	if txn.Status != status && !txn.Status.CanTransitionTo(status) {
		log.WithField("status", string(txn.Status)).Info("ledger entry already finalized")
		return &ReconcileResult{Outcome: OutcomeAlreadyFinal, Transaction: txn}, nil
	}

	meta := models.Metadata{models.MetaEventID: eventID}
	if reason != "" {
		meta[models.MetaFailureReason] = reason
	}
	result, err := r.ledgerRepo.FinalizeTransaction(ctx, txn.ID, status, meta)
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidTransition) {
			log.WithError(err).Info("ledger entry finalized concurrently")
			return &ReconcileResult{Outcome: OutcomeAlreadyFinal, Transaction: txn}, nil
		}
		r.metrics.LedgerOperation("finalize_"+string(status), OutcomeError)
		log.WithError(err).Error("failed to finalize top-up")
		return nil, fromRepositoryError(err, "transaction")
	}

	outcome := OutcomeFailed
	event := utils.EventTopUpFailed
	if status == models.TransactionStatusExpired {
		outcome, event = OutcomeExpired, utils.EventTopUpExpired
	}
	if result.Duplicate {
		r.metrics.LedgerOperation("finalize_"+string(status), OutcomeDuplicate)
		return &ReconcileResult{Outcome: OutcomeDuplicate, Transaction: result.Transaction}, nil
	}

	r.metrics.LedgerOperation("finalize_"+string(status), outcome)
	log.LogWalletEvent(txn.WalletID.String(), event, map[string]interface{}{"reason": reason})
	r.audit.Record(ctx, &models.AuditLog{
		Action:          models.AuditActionTopUpFinalized,
		Outcome:         outcome,
		UserID:          txn.UserID.String(),
		WalletID:        txn.WalletID.String(),
		TransactionID:   txn.ID.String(),
		EventID:         eventID,
		SessionID:       sessionID,
		PaymentIntentID: paymentIntentID,
		Amount:          txn.Amount.StringFixed(2),
		Details:         map[string]string{"reason": reason},
	})
	if sessionID != "" {
		r.invalidateStatus(ctx, sessionID)
	}

	return &ReconcileResult{Outcome: outcome, Transaction: result.Transaction}, nil
}

func (r *topUpReconciler) invalidateStatus(ctx context.Context, sessionID string) {
	if err := r.cache.Delete(ctx, utils.CachePaymentStatusPrefix+sessionID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("session_id", sessionID).Warn("failed to drop cached payment status")
	}
}
