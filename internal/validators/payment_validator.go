package validators

import (
	"fmt"
	"strings"

	"ridewallet/internal/models"

	"github.com/shopspring/decimal"
)

type topUpInput struct {
	Amount   int64  `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,currency_code"`
	UserID   string `json:"userId" validate:"required,wallet_id"`
	WalletID string `json:"walletId" validate:"required,wallet_id"`
}

type transferInput struct {
	FromWalletID string `json:"fromWalletId" validate:"required,wallet_id"`
	ToWalletID   string `json:"toWalletId" validate:"required,wallet_id,nefield=FromWalletID"`
	Description  string `json:"description" validate:"max=255"`
}

type orderCompletionInput struct {
	OrderID  string `json:"orderId" validate:"required,order_id"`
	DriverID string `json:"driverId" validate:"required,wallet_id"`
	Currency string `json:"currency" validate:"required,currency_code"`
}

// TopUpLimits bounds a top-up in minor units.
type TopUpLimits struct {
	MinMinor int64
	MaxMinor int64
}

func ValidateTopUp(req *models.TopUpRequest, limits TopUpLimits) ValidationErrors {
	errors := ValidateStruct(&topUpInput{
		Amount:   req.Amount,
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		UserID:   req.UserID,
		WalletID: req.WalletID,
	})

	if req.Amount < limits.MinMinor {
		errors = append(errors, ValidationError{
			Field:   "amount",
			Tag:     "min",
			Value:   fmt.Sprintf("%d", req.Amount),
			Message: fmt.Sprintf("amount must be at least %d", limits.MinMinor),
		})
	}
	if limits.MaxMinor > 0 && req.Amount > limits.MaxMinor {
		errors = append(errors, ValidationError{
			Field:   "amount",
			Tag:     "max",
			Value:   fmt.Sprintf("%d", req.Amount),
			Message: fmt.Sprintf("amount must be at most %d", limits.MaxMinor),
		})
	}

	return errors
}

// ValidateTransfer checks ids and description. The amount is checked against
// the wallet currency once the source wallet is known.
func ValidateTransfer(req *models.TransferRequest) ValidationErrors {
	errors := ValidateStruct(&transferInput{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Description:  req.Description,
	})

	if !req.Amount.IsPositive() {
		errors = append(errors, ValidationError{
			Field:   "amount",
			Tag:     "gt",
			Value:   req.Amount.String(),
			Message: "amount must be greater than 0",
		})
	}

	return errors
}

func ValidateOrderCompletion(orderID string, req *models.OrderCompletionRequest) ValidationErrors {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	errors := ValidateStruct(&orderCompletionInput{
		OrderID:  orderID,
		DriverID: req.DriverID,
		Currency: currency,
	})

	if verr := ValidateMoney("amount", req.Amount, currency); verr != nil {
		errors = append(errors, *verr)
	}

	return errors
}

// ValidateAmountForCurrency is applied to transfers after the wallet currency is resolved.
func ValidateAmountForCurrency(amount decimal.Decimal, currency string) ValidationErrors {
	if verr := ValidateMoney("amount", amount, currency); verr != nil {
		return ValidationErrors{*verr}
	}
	return nil
}
