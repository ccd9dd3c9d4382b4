// Package reconcile sweeps pending top-ups whose webhook never arrived and
// settles them from the processor's view of the session.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/services"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"

	"github.com/robfig/cron/v3"
)

const sweepEventID = "sweeper"

// Summary counts what one sweep did, keyed by reconcile outcome.
type Summary struct {
	Examined int            `json:"examined"`
	Outcomes map[string]int `json:"outcomes"`
}

type Worker struct {
	provider        payment.CheckoutProvider
	transactionRepo interfaces.TransactionRepository
	reconciler      services.TopUpReconciler
	metrics         *metrics.Metrics
	logger          *logger.Logger
	staleAge        time.Duration
	batchSize       int
	cron            *cron.Cron
	running         sync.Mutex
	now             func() time.Time
}

func NewWorker(
	provider payment.CheckoutProvider,
	transactionRepo interfaces.TransactionRepository,
	reconciler services.TopUpReconciler,
	m *metrics.Metrics,
	log *logger.Logger,
	staleAge time.Duration,
	batchSize int,
) *Worker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Worker{
		provider:        provider,
		transactionRepo: transactionRepo,
		reconciler:      reconciler,
		metrics:         m,
		logger:          log,
		staleAge:        staleAge,
		batchSize:       batchSize,
		cron:            cron.New(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep. An empty schedule leaves the worker idle.
func (w *Worker) Start(schedule string) error {
	if schedule == "" {
		w.logger.Info("Reconcile sweeper disabled")
		return nil
	}

	_, err := w.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.WithError(err).Error("Reconcile sweep failed")
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.WithField("schedule", schedule).Info("Reconcile sweeper started")
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Reconcile sweeper stopped")
}

// RunOnce settles one batch of stale pending or failed top-ups. Overlapping runs are skipped.
func (w *Worker) RunOnce(ctx context.Context) (*Summary, error) {
	summary := &Summary{Outcomes: map[string]int{}}
	if !w.running.TryLock() {
		w.logger.Debug("Reconcile sweep already running")
		return summary, nil
	}
	defer w.running.Unlock()

	stale, err := w.transactionRepo.ListStaleUnsettled(ctx, w.now().Add(-w.staleAge), w.batchSize)
	if err != nil {
		return summary, err
	}

	for _, txn := range stale {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Examined++

		outcome, err := w.settle(ctx, txn)
		if err != nil {
			outcome = services.OutcomeError
			w.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"transaction_id": txn.ID.String(),
				"wallet_id":      txn.WalletID.String(),
				"session_id":     derefString(txn.StripeSessionID),
			}).Warn("Failed to settle stale top-up")
		}
		summary.Outcomes[outcome]++
		w.metrics.SweepResult(outcome)
	}

	if summary.Examined > 0 {
		w.logger.WithFields(map[string]interface{}{
			"examined": summary.Examined,
			"outcomes": summary.Outcomes,
		}).Info("Reconcile sweep finished")
	}
	return summary, nil
}

func (w *Worker) settle(ctx context.Context, txn *models.WalletTransaction) (string, error) {
	sessionID := derefString(txn.StripeSessionID)

	session, err := w.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, payment.ErrSessionNotFound) {
			return "", err
		}
		// Unknown to the processor: nothing can ever be paid against it.
		session = &payment.CheckoutSession{ID: sessionID, Status: payment.SessionStatusExpired}
	}

	var result *services.ReconcileResult
	switch {
	case session.Status == payment.SessionStatusComplete && session.IsPaid():
		result, err = w.reconciler.CompleteSession(ctx, session, sweepEventID)
	case session.Status == payment.SessionStatusExpired:
		result, err = w.reconciler.FinalizeSession(ctx, session, models.TransactionStatusExpired, "session_expired", sweepEventID)
	default:
		return "still_open", nil
	}
	if err != nil {
		return "", err
	}
	return result.Outcome, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
