package services

import (
	"context"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/pkg/logger"
)

type AuditService interface {
	// Record appends to the audit trail. Failures are logged, never returned:
	// the trail must not block a money movement that already committed.
	Record(ctx context.Context, entry *models.AuditLog)
}

type auditService struct {
	repo    interfaces.AuditLogRepository
	logger  *logger.Logger
	timeout time.Duration
}

// NewAuditService accepts a nil repository, in which case entries are only logged.
func NewAuditService(repo interfaces.AuditLogRepository, log *logger.Logger) AuditService {
	return &auditService{repo: repo, logger: log, timeout: 3 * time.Second}
}

func (s *auditService) Record(ctx context.Context, entry *models.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = logger.RequestIDFromContext(ctx)
	}

	if s.repo == nil {
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"audit_action":  string(entry.Action),
			"audit_outcome": entry.Outcome,
			"wallet_id":     entry.WalletID,
			"session_id":    entry.SessionID,
		}).Debug("audit entry")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.repo.Create(writeCtx, entry); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"audit_action": string(entry.Action),
			"wallet_id":    entry.WalletID,
			"session_id":   entry.SessionID,
			"event_id":     entry.EventID,
		}).Error("failed to write audit log")
	}
}
