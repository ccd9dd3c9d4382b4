package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"
)

type WebhookResult struct {
	EventID     string                    `json:"eventId"`
	EventType   string                    `json:"eventType"`
	Outcome     string                    `json:"outcome"`
	Transaction *models.WalletTransaction `json:"-"`
}

type WebhookService interface {
	// HandleStripeEvent authenticates and applies one processor event. A nil
	// error means the event may be acknowledged.
	HandleStripeEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
}

type webhookService struct {
	provider   payment.CheckoutProvider
	reconciler TopUpReconciler
	cache      CacheService
	audit      AuditService
	metrics    *metrics.Metrics
	logger     *logger.Logger
	markerTTL  time.Duration
}

func NewWebhookService(
	provider payment.CheckoutProvider,
	reconciler TopUpReconciler,
	cache CacheService,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
	markerTTL time.Duration,
) WebhookService {
	if markerTTL <= 0 {
		markerTTL = 72 * time.Hour
	}
	return &webhookService{
		provider:   provider,
		reconciler: reconciler,
		cache:      cache,
		audit:      audit,
		metrics:    m,
		logger:     log,
		markerTTL:  markerTTL,
	}
}

func (s *webhookService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		s.metrics.WebhookEvent("unknown", OutcomeInvalidSignature)
		s.logger.WithContext(ctx).LogSecurityEvent("webhook_signature_invalid", "high", map[string]interface{}{
			"error":         err.Error(),
			"has_signature": signature != "",
			"payload_bytes": len(payload),
		})
		return nil, &AppError{Status: http.StatusBadRequest, Code: CodeInvalidSignature, Message: "webhook signature verification failed", Err: err}
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"event_id":   event.EventID,
		"event_type": event.EventType,
	})
	markerKey := utils.CacheStripeEventPrefix + event.EventID

	if seen, err := s.cache.Exists(ctx, markerKey); err != nil {
		log.WithError(err).Warn("failed to read webhook replay marker")
	} else if seen {
		s.metrics.WebhookEvent(event.EventType, OutcomeReplayed)
		log.Info("webhook event already processed")
		return &WebhookResult{EventID: event.EventID, EventType: event.EventType, Outcome: OutcomeReplayed}, nil
	}

	result, err := s.dispatch(ctx, event)
	if err != nil {
		s.metrics.WebhookEvent(event.EventType, OutcomeError)
		log.WithError(err).Error("failed to process webhook event")
		return nil, err
	}

	if _, err := s.cache.SetNX(ctx, markerKey, result.Outcome, s.markerTTL); err != nil {
		log.WithError(err).Warn("failed to write webhook replay marker")
	}
	s.metrics.WebhookEvent(event.EventType, result.Outcome)

	entry := &models.AuditLog{
		Action:    models.AuditActionWebhookReceived,
		Outcome:   result.Outcome,
		EventID:   event.EventID,
		EventType: event.EventType,
	}
	if event.Session != nil {
		entry.SessionID = event.Session.ID
		entry.PaymentIntentID = event.Session.PaymentIntentID
		entry.UserID = event.Session.Metadata["userId"]
		entry.WalletID = event.Session.Metadata["walletId"]
	}
	if event.PaymentIntent != nil {
		entry.PaymentIntentID = event.PaymentIntent.ID
		entry.UserID = event.PaymentIntent.Metadata["userId"]
		entry.WalletID = event.PaymentIntent.Metadata["walletId"]
	}
	if result.Transaction != nil {
		entry.TransactionID = result.Transaction.ID.String()
		entry.WalletID = result.Transaction.WalletID.String()
	}
	s.audit.Record(ctx, entry)

	log.WithFields(map[string]interface{}{
		"outcome":           result.Outcome,
		"session_id":        entry.SessionID,
		"payment_intent_id": entry.PaymentIntentID,
		"wallet_id":         entry.WalletID,
	}).Info("webhook event processed")

	return result, nil
}

func (s *webhookService) dispatch(ctx context.Context, event *payment.WebhookEvent) (*WebhookResult, error) {
	result := &WebhookResult{EventID: event.EventID, EventType: event.EventType}

	var (
		reconciled *ReconcileResult
		err        error
	)
	switch event.EventType {
	case payment.EventCheckoutSessionCompleted:
		if event.Session == nil {
			return nil, errMissingEventObject
		}
		if !event.Session.IsPaid() {
			// Delayed payment methods settle through the async_payment events.
			result.Outcome = OutcomeAwaitingPayment
			return result, nil
		}
		reconciled, err = s.reconciler.CompleteSession(ctx, event.Session, event.EventID)

	case payment.EventCheckoutSessionAsyncPaymentSucceeded:
		if event.Session == nil {
			return nil, errMissingEventObject
		}
		reconciled, err = s.reconciler.CompleteSession(ctx, event.Session, event.EventID)

	case payment.EventCheckoutSessionAsyncPaymentFailed:
		if event.Session == nil {
			return nil, errMissingEventObject
		}
		reconciled, err = s.reconciler.FinalizeSession(ctx, event.Session, models.TransactionStatusFailed, "async_payment_failed", event.EventID)

	case payment.EventCheckoutSessionExpired:
		if event.Session == nil {
			return nil, errMissingEventObject
		}
		reconciled, err = s.reconciler.FinalizeSession(ctx, event.Session, models.TransactionStatusExpired, "session_expired", event.EventID)

	case payment.EventPaymentIntentPaymentFailed:
		if event.PaymentIntent == nil {
			return nil, errMissingEventObject
		}
		reconciled, err = s.reconciler.FailPaymentIntent(ctx, event.PaymentIntent, event.EventID)

	default:
		s.logger.WithContext(ctx).WithField("event_type", event.EventType).Info("ignoring unhandled webhook event type")
		result.Outcome = OutcomeUnhandled
		return result, nil
	}

	if err != nil {
		return nil, err
	}
	result.Outcome = reconciled.Outcome
	result.Transaction = reconciled.Transaction
	return result, nil
}

var errMissingEventObject = &AppError{
	Status:  http.StatusBadRequest,
	Code:    CodeValidation,
	Message: "webhook event has no data object",
	Err:     errors.New("missing event data object"),
}
