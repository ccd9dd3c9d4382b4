package services

import (
	"errors"
	"fmt"
	"net/http"

	"ridewallet/internal/repositories/interfaces"
	"ridewallet/internal/utils"
)

// Error codes returned in the API error envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeCurrencyMismatch   = "CURRENCY_MISMATCH"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodePaymentProvider    = "PAYMENT_PROVIDER_ERROR"
	CodeLedgerWriteFailed  = "LEDGER_WRITE_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeDuplicateOperation = "DUPLICATE_OPERATION"
)

// AppError is a failure the HTTP layer can render as-is.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(details map[string]string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: utils.ErrValidationFailed, Details: details}
}

func NewUnauthorizedError() *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: utils.ErrUnauthorized}
}

func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = utils.ErrForbidden
	}
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func NewCurrencyMismatchError(want, got string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeCurrencyMismatch,
		Message: fmt.Sprintf("currency %s does not match wallet currency %s", got, want),
	}
}

func NewInsufficientFundsError(err error) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Code: CodeInsufficientFunds, Message: "insufficient funds", Err: err}
}

func NewPaymentProviderError(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodePaymentProvider, Message: "payment provider request failed", Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: utils.ErrInternalServer, Err: err}
}

// fromRepositoryError maps repository sentinels onto API errors.
func fromRepositoryError(err error, resource string) *AppError {
	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, interfaces.ErrNotFound):
		return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found", Err: err}
	case errors.Is(err, interfaces.ErrInsufficientFunds):
		return NewInsufficientFundsError(err)
	case errors.Is(err, interfaces.ErrCurrencyMismatch):
		return &AppError{Status: http.StatusBadRequest, Code: CodeCurrencyMismatch, Message: "wallet currencies do not match", Err: err}
	case errors.Is(err, interfaces.ErrInvalidTransition):
		return &AppError{Status: http.StatusConflict, Code: CodeInvalidTransition, Message: "transaction is already finalized", Err: err}
	case errors.Is(err, interfaces.ErrDuplicate):
		return &AppError{Status: http.StatusConflict, Code: CodeDuplicateOperation, Message: "operation already recorded", Err: err}
	default:
		return NewInternalError(err)
	}
}
