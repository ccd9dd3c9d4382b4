package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridewallet/internal/models"
	"ridewallet/internal/repositories/memory"
	"ridewallet/pkg/logger"
	"ridewallet/pkg/metrics"
	"ridewallet/pkg/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCheckoutProvider struct {
	mock.Mock
}

func (m *MockCheckoutProvider) CreateCheckoutSession(ctx context.Context, request *payment.CheckoutSessionRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, request)
	session, _ := args.Get(0).(*payment.CheckoutSession)
	return session, args.Error(1)
}

func (m *MockCheckoutProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*payment.CheckoutSession)
	return session, args.Error(1)
}

func (m *MockCheckoutProvider) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockCheckoutProvider) ConstructEvent(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	event, _ := args.Get(0).(*payment.WebhookEvent)
	return event, args.Error(1)
}

type publishedUpdate struct {
	Event    string
	WalletID uuid.UUID
	Balance  decimal.Decimal
}

type recordingRealtime struct {
	mu      sync.Mutex
	updates []publishedUpdate
}

func (r *recordingRealtime) PublishWalletUpdate(ctx context.Context, event string, wallet *models.Wallet, txn *models.WalletTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, publishedUpdate{Event: event, WalletID: wallet.ID, Balance: wallet.Balance})
}

func (r *recordingRealtime) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (r *recordingRealtime) Updates() []publishedUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishedUpdate(nil), r.updates...)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, entry *models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) Actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// fixture wires the services against the in-memory ledger.
type fixture struct {
	store    *memory.Store
	provider *MockCheckoutProvider
	realtime *recordingRealtime
	audit    *recordingAudit
	cache    CacheService
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := &MockCheckoutProvider{}
	t.Cleanup(func() { provider.AssertExpectations(t) })

	return &fixture{
		store:    memory.NewStore(),
		provider: provider,
		realtime: &recordingRealtime{},
		audit:    &recordingAudit{},
		cache:    NewNoopCacheService(),
		metrics:  metrics.New(nil),
		logger:   logger.NewDiscardLogger(),
	}
}

func (f *fixture) reconciler() TopUpReconciler {
	return NewTopUpReconciler(f.store.Transactions(), f.store.Ledger(), f.cache, f.realtime, f.audit, f.metrics, f.logger)
}

func (f *fixture) wallet(t *testing.T, balance, currency string) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		UserType: models.UserTypeCustomer,
		Balance:  decimal.RequireFromString(balance),
		Currency: currency,
	}
	f.store.PutWallet(w)
	return w
}

func (f *fixture) balance(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.store.Wallets().GetByID(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func ownerOf(w *models.Wallet) *models.Caller {
	return &models.Caller{UserID: w.UserID, Role: models.RoleAuthenticated, Email: "owner@example.com"}
}

func requireAppError(t *testing.T, err error, status int, code string) *AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.Status, appErr.Error())
	require.Equal(t, code, appErr.Code)
	return appErr
}
