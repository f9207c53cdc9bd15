package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is returned while the circuit to the provider is open.
	ErrUnavailable = errors.New("payment provider unavailable")
	// ErrNoApprovalURL is returned when a created payment carries no approval link.
	ErrNoApprovalURL = errors.New("payment has no approval url")
)

// Order describes a single-item purchase to be paid for.
type Order struct {
	Reference   string
	Description string
	Amount      decimal.Decimal
	Currency    string
}

// Payment is a created, not yet approved, provider payment.
type Payment struct {
	ID          string
	ApprovalURL string
	Token       string
}

// Execution is the provider's answer to executing an approved payment.
type Execution struct {
	ID    string
	State string
}

// Approved reports whether the provider settled the payment.
func (e *Execution) Approved() bool {
	return e.State == "approved" || e.State == "completed"
}

// Provider is the external payment collaborator used by checkout.
type Provider interface {
	CreatePayment(ctx context.Context, order Order) (*Payment, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*Execution, error)
}
