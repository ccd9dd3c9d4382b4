package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserTypeCustomer UserType = "customer"
	UserTypeDriver   UserType = "driver"
)

func ParseUserType(value string) (UserType, error) {
	switch UserType(value) {
	case UserTypeCustomer, UserTypeDriver:
		return UserType(value), nil
	default:
		return "", fmt.Errorf("unknown user type %q", value)
	}
}

type Wallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	UserType  UserType        `json:"user_type" db:"user_type"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// WalletBalance is the trimmed view returned alongside mutations.
type WalletBalance struct {
	ID       uuid.UUID       `json:"id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func (w *Wallet) BalanceView() *WalletBalance {
	if w == nil {
		return nil
	}
	return &WalletBalance{ID: w.ID, Balance: w.Balance, Currency: w.Currency}
}

// Roles recognised on authenticated callers.
const (
	RoleAuthenticated = "authenticated"
	RoleSupport       = "support"
	RoleAdmin         = "admin"
	RoleServiceRole   = "service_role"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Role     string    `json:"role"`
	UserType string    `json:"user_type,omitempty"`
}

// IsPrivileged reports whether the caller may act on wallets it does not own.
func (c *Caller) IsPrivileged() bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleSupport, RoleAdmin, RoleServiceRole:
		return true
	}
	return false
}

// CanAccess reports whether the caller owns the user id or is privileged.
func (c *Caller) CanAccess(userID uuid.UUID) bool {
	if c == nil {
		return false
	}
	return c.IsPrivileged() || c.UserID == userID
}
