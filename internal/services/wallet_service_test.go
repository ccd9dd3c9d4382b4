package services

import (
	"context"
	"net/http"
	"testing"

	"ridewallet/internal/models"
	"ridewallet/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_GetMyWallet(t *testing.T) {
	f := newFixture(t)
	svc := NewWalletService(f.store.Wallets(), f.store.Transactions(), "usd")
	caller := &models.Caller{UserID: uuid.New(), Role: models.RoleAuthenticated}

	wallet, err := svc.GetMyWallet(context.Background(), caller, "")
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeCustomer, wallet.UserType)
	assert.Equal(t, "USD", wallet.Currency)
	assert.True(t, wallet.Balance.IsZero())

	again, err := svc.GetMyWallet(context.Background(), caller, "customer")
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)

	driver, err := svc.GetMyWallet(context.Background(), caller, "driver")
	require.NoError(t, err)
	assert.NotEqual(t, wallet.ID, driver.ID)

	_, err = svc.GetMyWallet(context.Background(), caller, "merchant")
	requireAppError(t, err, http.StatusBadRequest, CodeValidation)

	_, err = svc.GetMyWallet(context.Background(), nil, "")
	requireAppError(t, err, http.StatusUnauthorized, CodeUnauthorized)
}

func TestWalletService_ListTransactions(t *testing.T) {
	f := newFixture(t)
	svc := NewWalletService(f.store.Wallets(), f.store.Transactions(), "USD")
	w := f.wallet(t, "0", "USD")
	f.pendingTopUp(t, w, "cs_1", "ref-1", "10.00")
	f.pendingTopUp(t, w, "cs_2", "ref-2", "20.00")
	params := utils.NewPaginationParams(1, 20, "desc")

	txns, total, err := svc.ListTransactions(context.Background(), ownerOf(w), w.ID.String(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, txns, 2)

	_, _, err = svc.ListTransactions(context.Background(), &models.Caller{UserID: uuid.New(), Role: models.RoleAuthenticated}, w.ID.String(), params)
	requireAppError(t, err, http.StatusForbidden, CodeForbidden)

	_, _, err = svc.ListTransactions(context.Background(), ownerOf(w), "not-a-uuid", params)
	requireAppError(t, err, http.StatusBadRequest, CodeValidation)

	_, _, err = svc.ListTransactions(context.Background(), ownerOf(w), uuid.NewString(), params)
	requireAppError(t, err, http.StatusNotFound, CodeNotFound)
}
