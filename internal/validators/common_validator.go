package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"ridewallet/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json names so details line up with the request body.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	validate.RegisterValidation("wallet_id", validateUUID)
	validate.RegisterValidation("currency_code", validateCurrencyCode)
	validate.RegisterValidation("order_id", validateOrderID)
}

// Common validation errors
var (
	ErrInvalidID       = errors.New("invalid identifier format")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ToMap keeps the first message per field, for the API error details.
func (v ValidationErrors) ToMap() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		if _, exists := out[err.Field]; !exists {
			out[err.Field] = err.Message
		}
	}
	return out
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return ValidationErrors{{Field: "request", Message: err.Error()}}
		}
		for _, err := range fieldErrors {
			validationError := ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: getErrorMessage(err),
			}
			validationErrors = append(validationErrors, validationError)
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "wallet_id", "uuid":
		return "Invalid ID format"
	case "currency_code":
		return "Invalid currency code"
	case "order_id":
		return "Invalid order ID"
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

// Custom validation functions
func validateUUID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let required tag handle empty values
	}
	return IsValidUUID(value)
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return utils.ValidateCurrencyCode(fl.Field().String())
}

var orderIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

func validateOrderID(fl validator.FieldLevel) bool {
	return orderIDRegex.MatchString(fl.Field().String())
}

// Helper functions for common validations
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// ValidateMoney checks a major-unit amount: positive and representable in the currency.
func ValidateMoney(field string, amount decimal.Decimal, currency string) *ValidationError {
	switch {
	case !amount.IsPositive():
		return &ValidationError{Field: field, Tag: "gt", Value: amount.String(), Message: fmt.Sprintf("%s must be greater than 0", field)}
	case !utils.HasValidPrecision(amount, currency):
		return &ValidationError{Field: field, Tag: "precision", Value: amount.String(), Message: fmt.Sprintf("%s has too many decimal places", field)}
	}
	return nil
}

func SanitizeInput(input string) string {
	// Remove HTML tags and trim whitespace
	htmlRegex := regexp.MustCompile(`<[^>]*>`)
	cleaned := htmlRegex.ReplaceAllString(input, "")
	return strings.TrimSpace(cleaned)
}
