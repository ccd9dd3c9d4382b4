package services

import (
	"context"
	"encoding/json"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/websocket"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WalletUpdate is fanned out to every instance and pushed to the wallet owner.
type WalletUpdate struct {
	Event         string `json:"event"`
	UserID        string `json:"userId"`
	WalletID      string `json:"walletId"`
	Balance       string `json:"balance"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transactionId,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Type          string `json:"type,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Subscriber is satisfied by the Redis cache.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// UserNotifier delivers to locally connected clients.
type UserNotifier interface {
	SendToUser(userID uuid.UUID, message websocket.Message) bool
}

type RealtimeService interface {
	PublishWalletUpdate(ctx context.Context, event string, wallet *models.Wallet, txn *models.WalletTransaction)
	// Run relays updates published by any instance to local clients until ctx ends.
	Run(ctx context.Context) error
}

type realtimeService struct {
	cache      CacheService
	subscriber Subscriber
	notifier   UserNotifier
	logger     *logger.Logger
}

// NewRealtimeService publishes through Redis when subscriber is set and
// delivers straight to the local hub otherwise.
func NewRealtimeService(cache CacheService, subscriber Subscriber, notifier UserNotifier, log *logger.Logger) RealtimeService {
	return &realtimeService{cache: cache, subscriber: subscriber, notifier: notifier, logger: log}
}

func (s *realtimeService) PublishWalletUpdate(ctx context.Context, event string, wallet *models.Wallet, txn *models.WalletTransaction) {
	if wallet == nil {
		return
	}
	update := WalletUpdate{
		Event:    event,
		UserID:   wallet.UserID.String(),
		WalletID: wallet.ID.String(),
		Balance:  wallet.Balance.StringFixed(2),
		Currency: wallet.Currency,
	}
	if txn != nil {
		update.TransactionID = txn.ID.String()
		update.Amount = txn.Amount.StringFixed(2)
		update.Type = string(txn.Type)
		update.Status = string(txn.Status)
	}

	if s.subscriber == nil {
		s.deliver(&update)
		return
	}
	if err := s.cache.Publish(context.WithoutCancel(ctx), utils.ChannelWalletUpdates, update); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("wallet_id", update.WalletID).Warn("failed to publish wallet update")
	}
}

func (s *realtimeService) Run(ctx context.Context) error {
	if s.subscriber == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := s.subscriber.Subscribe(ctx, utils.ChannelWalletUpdates)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var update WalletUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				s.logger.WithError(err).Warn("discarding malformed wallet update")
				continue
			}
			s.deliver(&update)
		}
	}
}

func (s *realtimeService) deliver(update *WalletUpdate) {
	if s.notifier == nil {
		return
	}
	userID, err := uuid.Parse(update.UserID)
	if err != nil {
		return
	}
	s.notifier.SendToUser(userID, websocket.Message{
		Type: update.Event,
		Data: map[string]interface{}{
			"walletId":      update.WalletID,
			"balance":       update.Balance,
			"currency":      update.Currency,
			"transactionId": update.TransactionID,
			"amount":        update.Amount,
			"type":          update.Type,
			"status":        update.Status,
		},
	})
}
