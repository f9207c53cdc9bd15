package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

const PaymentMethodPayPal = "paypal"

var ErrInvalidTransition = errors.New("invalid transaction status transition")

// CanTransition reports whether s may move to next. Only pending transactions move.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	if s != TransactionPending {
		return false
	}
	switch next {
	case TransactionCompleted, TransactionFailed, TransactionCancelled:
		return true
	}
	return false
}

type Transaction struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	UserID        uuid.UUID         `json:"userId" db:"user_id"`
	DesignID      uuid.UUID         `json:"designId" db:"design_id"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Status        TransactionStatus `json:"status" db:"status"`
	PaymentMethod string            `json:"paymentMethod" db:"payment_method"`
	PaymentID     *string           `json:"paymentId,omitempty" db:"payment_id"`
	Token         *string           `json:"token,omitempty" db:"token"`
	PayerID       *string           `json:"payerId,omitempty" db:"payer_id"`
	CreatedAt     time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time         `json:"updatedAt" db:"updated_at"`
}

// Transition moves the transaction to next or returns ErrInvalidTransition.
func (t *Transaction) Transition(next TransactionStatus) error {
	if !t.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	t.Status = next
	return nil
}

// Purchase is a completed transaction with its design expanded.
type Purchase struct {
	Transaction
	Design   DesignSummary `json:"design"`
	Username string        `json:"username,omitempty"`
}

type CheckoutRequest struct {
	DesignID uuid.UUID `json:"designId" validate:"required"`
}

type CheckoutResponse struct {
	TransactionID uuid.UUID `json:"transactionId"`
	ApprovalURL   string    `json:"approvalUrl"`
}

type ExecutePaymentRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	Token     string `json:"token" validate:"required"`
	PayerID   string `json:"payerId" validate:"required"`
}

type CancelPaymentRequest struct {
	Token string `json:"token" validate:"required"`
}

// DashboardStats summarises store activity for the admin back office.
type DashboardStats struct {
	TotalUsers         int             `json:"totalUsers"`
	TotalDesigns       int             `json:"totalDesigns"`
	TotalSales         int             `json:"totalSales"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
	TopDesigns         []DesignSummary `json:"topDesigns"`
	RecentTransactions []Purchase      `json:"recentTransactions"`
}
