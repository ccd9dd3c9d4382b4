package interfaces

import (
	"context"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"
)

type AuditLogRepository interface {
	Create(ctx context.Context, auditLog *models.AuditLog) error

	GetByWalletID(ctx context.Context, walletID string, params *utils.PaginationParams) ([]*models.AuditLog, int64, error)
	GetBySessionID(ctx context.Context, sessionID string) ([]*models.AuditLog, error)
	GetByEventID(ctx context.Context, eventID string) ([]*models.AuditLog, error)
	GetByAction(ctx context.Context, action models.AuditAction, params *utils.PaginationParams) ([]*models.AuditLog, int64, error)

	DeleteOldLogs(ctx context.Context, before time.Time) (int64, error)
}
