package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditLogCollection = "audit_logs"

type auditLogRepository struct {
	collection *mongo.Collection
}

func NewAuditLogRepository(db *mongo.Database) interfaces.AuditLogRepository {
	return &auditLogRepository{
		collection: db.Collection(auditLogCollection),
	}
}

// EnsureAuditLogIndexes creates the lookup indexes used by operators.
func EnsureAuditLogIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	if _, err := db.Collection(auditLogCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create audit log indexes: %w", err)
	}
	return nil
}

func (r *auditLogRepository) Create(ctx context.Context, auditLog *models.AuditLog) error {
	auditLog.ID = primitive.NewObjectID()
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, auditLog); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditLogRepository) GetByWalletID(ctx context.Context, walletID string, params *utils.PaginationParams) ([]*models.AuditLog, int64, error) {
	return r.findPaged(ctx, bson.M{"wallet_id": walletID}, params)
}

func (r *auditLogRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.AuditLog, error) {
	return r.findAll(ctx, bson.M{"session_id": sessionID})
}

func (r *auditLogRepository) GetByEventID(ctx context.Context, eventID string) ([]*models.AuditLog, error) {
	return r.findAll(ctx, bson.M{"event_id": eventID})
}

func (r *auditLogRepository) GetByAction(ctx context.Context, action models.AuditAction, params *utils.PaginationParams) ([]*models.AuditLog, int64, error) {
	return r.findPaged(ctx, bson.M{"action": action}, params)
}

func (r *auditLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"created_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *auditLogRepository) findAll(ctx context.Context, filter bson.M) ([]*models.AuditLog, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAuditLogs(ctx, cursor)
}

func (r *auditLogRepository) findPaged(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.AuditLog, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	sortDir := -1
	if params.Order == "asc" {
		sortDir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: sortDir}}).
		SetSkip(int64(params.GetSkip())).
		SetLimit(int64(params.GetLimit()))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs, err := decodeAuditLogs(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func decodeAuditLogs(ctx context.Context, cursor *mongo.Cursor) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	for cursor.Next(ctx) {
		var log models.AuditLog
		if err := cursor.Decode(&log); err != nil {
			return nil, fmt.Errorf("failed to decode audit log: %w", err)
		}
		logs = append(logs, &log)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("audit log cursor error: %w", err)
	}
	return logs, nil
}
