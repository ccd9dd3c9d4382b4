package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ridewallet/internal/middleware"
	"ridewallet/internal/models"
	"ridewallet/internal/services"
	"ridewallet/internal/utils"
	"ridewallet/pkg/auth"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockCheckoutService struct{ mock.Mock }

func (m *MockCheckoutService) CreateTopUpSession(ctx context.Context, caller *models.Caller, request *models.TopUpRequest) (*models.TopUpSession, error) {
	args := m.Called(ctx, caller, request)
	session, _ := args.Get(0).(*models.TopUpSession)
	return session, args.Error(1)
}

type MockPaymentStatusService struct{ mock.Mock }

func (m *MockPaymentStatusService) GetPaymentStatus(ctx context.Context, caller *models.Caller, sessionID string) (*models.PaymentStatusView, error) {
	args := m.Called(ctx, caller, sessionID)
	view, _ := args.Get(0).(*models.PaymentStatusView)
	return view, args.Error(1)
}

type MockTransferService struct{ mock.Mock }

func (m *MockTransferService) Transfer(ctx context.Context, caller *models.Caller, request *models.TransferRequest) (*models.TransferResult, error) {
	args := m.Called(ctx, caller, request)
	result, _ := args.Get(0).(*models.TransferResult)
	return result, args.Error(1)
}

type MockWalletService struct{ mock.Mock }

func (m *MockWalletService) GetMyWallet(ctx context.Context, caller *models.Caller, userType string) (*models.Wallet, error) {
	args := m.Called(ctx, caller, userType)
	wallet, _ := args.Get(0).(*models.Wallet)
	return wallet, args.Error(1)
}

func (m *MockWalletService) ListTransactions(ctx context.Context, caller *models.Caller, walletID string, params *utils.PaginationParams) ([]*models.WalletTransaction, int64, error) {
	args := m.Called(ctx, caller, walletID, params)
	txns, _ := args.Get(0).([]*models.WalletTransaction)
	return txns, args.Get(1).(int64), args.Error(2)
}

type MockWebhookService struct{ mock.Mock }

func (m *MockWebhookService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) (*services.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	result, _ := args.Get(0).(*services.WebhookResult)
	return result, args.Error(1)
}

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) CompleteOrder(ctx context.Context, caller *models.Caller, orderID string, request *models.OrderCompletionRequest) (*models.LedgerResult, error) {
	args := m.Called(ctx, caller, orderID, request)
	result, _ := args.Get(0).(*models.LedgerResult)
	return result, args.Error(1)
}

type tokenVerifier map[string]*auth.Identity

func (v tokenVerifier) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return nil, auth.ErrInvalidToken
}

type handlerFixture struct {
	router   *gin.Engine
	userID   uuid.UUID
	checkout *MockCheckoutService
	status   *MockPaymentStatusService
	transfer *MockTransferService
	wallets  *MockWalletService
	webhooks *MockWebhookService
	orders   *MockOrderService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	log := logger.NewDiscardLogger()
	f := &handlerFixture{
		router:   gin.New(),
		userID:   uuid.New(),
		checkout: &MockCheckoutService{},
		status:   &MockPaymentStatusService{},
		transfer: &MockTransferService{},
		wallets:  &MockWalletService{},
		webhooks: &MockWebhookService{},
		orders:   &MockOrderService{},
	}
	t.Cleanup(func() {
		mock.AssertExpectationsForObjects(t, f.checkout, f.status, f.transfer, f.wallets, f.webhooks, f.orders)
	})

	authRequired := middleware.AuthRequired(tokenVerifier{
		"user":    {UserID: f.userID, Role: models.RoleAuthenticated},
		"service": {Role: models.RoleServiceRole},
	}, log)

	walletHandler := NewWalletHandler(f.checkout, f.status, f.transfer, f.wallets, log)
	f.router.POST("/webhooks/stripe", NewWebhookHandler(f.webhooks, log).HandleStripeWebhook)
	f.router.POST("/payments/checkout", authRequired, walletHandler.CreateCheckoutSession)
	f.router.GET("/payments/status", authRequired, walletHandler.GetPaymentStatus)
	f.router.POST("/wallets/transfer", authRequired, walletHandler.Transfer)
	f.router.GET("/wallets/me", authRequired, walletHandler.GetMyWallet)
	f.router.GET("/wallets/:id/transactions", authRequired, walletHandler.GetTransactions)
	f.router.POST("/orders/:id/complete", authRequired, NewOrderHandler(f.orders, log).CompleteOrder)
	return f
}

func (f *handlerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var response utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func callerWithUser(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(c *models.Caller) bool { return c != nil && c.UserID == id })
}

func TestWalletHandler_CreateCheckoutSession(t *testing.T) {
	f := newHandlerFixture(t)
	walletID := uuid.New()
	f.checkout.On("CreateTopUpSession", mock.Anything, callerWithUser(f.userID), &models.TopUpRequest{
		Amount: 2500, Currency: "usd", UserID: f.userID.String(), WalletID: walletID.String(),
	}).Return(&models.TopUpSession{SessionID: "cs_1", URL: "https://checkout.example/cs_1", Amount: 2500, Currency: "USD"}, nil)

	body := `{"amount":2500,"currency":"usd","userId":"` + f.userID.String() + `","walletId":"` + walletID.String() + `"}`
	w := f.do(http.MethodPost, "/payments/checkout", "user", body)

	require.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w)
	assert.Equal(t, utils.StatusSuccess, response.Status)
	data := response.Data.(map[string]interface{})
	assert.Equal(t, "cs_1", data["sessionId"])
	assert.Equal(t, "https://checkout.example/cs_1", data["url"])
}

func TestWalletHandler_CreateCheckoutSession_Errors(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodPost, "/payments/checkout", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/payments/checkout", "user", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decodeEnvelope(t, w).Error.Code)

	f.checkout.On("CreateTopUpSession", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, services.NewValidationError(map[string]string{"amount": "amount must be at least 50"})).Once()
	w = f.do(http.MethodPost, "/payments/checkout", "user", `{"amount":10,"currency":"usd"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeEnvelope(t, w)
	assert.Equal(t, services.CodeValidation, response.Error.Code)
	assert.Equal(t, "amount must be at least 50", response.Error.Details["amount"])

	f.checkout.On("CreateTopUpSession", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()
	w = f.do(http.MethodPost, "/payments/checkout", "user", `{"amount":100,"currency":"usd"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeEnvelope(t, w).Error.Code)
}

func TestWalletHandler_GetPaymentStatus(t *testing.T) {
	f := newHandlerFixture(t)
	f.status.On("GetPaymentStatus", mock.Anything, callerWithUser(f.userID), "cs_42").
		Return(&models.PaymentStatusView{SessionID: "cs_42", Status: "complete", PaymentStatus: "paid"}, nil)
	f.status.On("GetPaymentStatus", mock.Anything, mock.Anything, "cs_other").
		Return(nil, services.NewForbiddenError("cannot view another user's payment"))

	w := f.do(http.MethodGet, "/payments/status?session_id=cs_42", "user", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decodeEnvelope(t, w).Data.(map[string]interface{})["paymentStatus"])

	w = f.do(http.MethodGet, "/payments/status?session_id=cs_other", "user", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, services.CodeForbidden, decodeEnvelope(t, w).Error.Code)
}

func TestWalletHandler_Transfer(t *testing.T) {
	f := newHandlerFixture(t)
	from, to := uuid.New(), uuid.New()
	request := &models.TransferRequest{FromWalletID: from.String(), ToWalletID: to.String(), Amount: decimal.RequireFromString("10.00")}
	f.transfer.On("Transfer", mock.Anything, callerWithUser(f.userID), mock.MatchedBy(func(r *models.TransferRequest) bool {
		return r.FromWalletID == request.FromWalletID && r.ToWalletID == request.ToWalletID && r.Amount.Equal(request.Amount)
	})).Return(&models.TransferResult{
		TransferReference: "transfer_abc",
		FromWallet:        &models.WalletBalance{ID: from, Balance: decimal.RequireFromString("40.00"), Currency: "USD"},
		ToWallet:          &models.WalletBalance{ID: to, Balance: decimal.RequireFromString("15.00"), Currency: "USD"},
	}, nil).Once()

	body := `{"fromWalletId":"` + from.String() + `","toWalletId":"` + to.String() + `","amount":"10.00"}`
	w := f.do(http.MethodPost, "/wallets/transfer", "user", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "transfer_abc", decodeEnvelope(t, w).Data.(map[string]interface{})["transferReference"])

	f.transfer.On("Transfer", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, services.NewInsufficientFundsError(errors.New("balance 5.00"))).Once()
	w = f.do(http.MethodPost, "/wallets/transfer", "user", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, services.CodeInsufficientFunds, decodeEnvelope(t, w).Error.Code)
}

func TestWalletHandler_GetMyWalletAndTransactions(t *testing.T) {
	f := newHandlerFixture(t)
	walletID := uuid.New()
	f.wallets.On("GetMyWallet", mock.Anything, callerWithUser(f.userID), "driver").
		Return(&models.Wallet{ID: walletID, UserID: f.userID, UserType: models.UserTypeDriver, Balance: decimal.Zero, Currency: "USD"}, nil)
	f.wallets.On("ListTransactions", mock.Anything, callerWithUser(f.userID), walletID.String(), mock.MatchedBy(func(p *utils.PaginationParams) bool {
		return p.Page == 2 && p.PageSize == 5
	})).Return([]*models.WalletTransaction{{ID: uuid.New(), WalletID: walletID}}, int64(6), nil)

	w := f.do(http.MethodGet, "/wallets/me?user_type=driver", "user", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, walletID.String(), decodeEnvelope(t, w).Data.(map[string]interface{})["id"])

	w = f.do(http.MethodGet, "/wallets/"+walletID.String()+"/transactions?page=2&page_size=5", "user", "")
	require.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w)
	require.NotNil(t, response.Meta)
	require.NotNil(t, response.Meta.Pagination)
	assert.Equal(t, int64(6), response.Meta.Pagination.Total)
	assert.Len(t, response.Data, 1)
}

func TestWebhookHandler(t *testing.T) {
	f := newHandlerFixture(t)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	f.webhooks.On("HandleStripeEvent", mock.Anything, payload, "t=1,v1=good").
		Return(&services.WebhookResult{EventID: "evt_1", Outcome: services.OutcomeCompleted}, nil).Once()
	f.webhooks.On("HandleStripeEvent", mock.Anything, payload, "t=1,v1=bad").
		Return(nil, &services.AppError{Status: http.StatusBadRequest, Code: services.CodeInvalidSignature, Message: "invalid signature"}).Once()
	f.webhooks.On("HandleStripeEvent", mock.Anything, payload, "t=1,v1=boom").
		Return(nil, errors.New("database unavailable")).Once()

	send := func(signature string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
		req.Header.Set("Stripe-Signature", signature)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	w := send("t=1,v1=good", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"outcome":"completed"}`, w.Body.String())

	w = send("t=1,v1=bad", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid signature","code":"INVALID_SIGNATURE"}`, w.Body.String())

	w = send("t=1,v1=boom", payload)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = send("t=1,v1=good", bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestOrderHandler_CompleteOrder(t *testing.T) {
	f := newHandlerFixture(t)
	driverID := uuid.New()
	result := &models.LedgerResult{Transaction: &models.WalletTransaction{ID: uuid.New()}}
	f.orders.On("CompleteOrder", mock.Anything, mock.Anything, "order-7", mock.AnythingOfType("*models.OrderCompletionRequest")).
		Return(result, nil).Once()
	f.orders.On("CompleteOrder", mock.Anything, mock.Anything, "order-7", mock.AnythingOfType("*models.OrderCompletionRequest")).
		Return(&models.LedgerResult{Transaction: result.Transaction, Duplicate: true}, nil).Once()

	body := `{"driverId":"` + driverID.String() + `","amount":"18.40","currency":"usd"}`
	w := f.do(http.MethodPost, "/orders/order-7/complete", "service", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order credited successfully", decodeEnvelope(t, w).Message)

	w = f.do(http.MethodPost, "/orders/order-7/complete", "service", body)
	require.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w)
	assert.Equal(t, "Order was already credited", response.Message)
	assert.Equal(t, true, response.Data.(map[string]interface{})["duplicate"])
}
