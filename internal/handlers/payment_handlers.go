package handlers

import (
	"net/http"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/labstack/echo/v4"
)

// PaymentHandlers drives checkout through the payment provider
type PaymentHandlers struct {
	transactions services.TransactionService
}

// NewPaymentHandlers creates a new payment handlers instance
func NewPaymentHandlers(transactions services.TransactionService) *PaymentHandlers {
	return &PaymentHandlers{transactions: transactions}
}

// CreatePayment opens a pending transaction and returns the approval URL
func (h *PaymentHandlers) CreatePayment(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	var req models.CheckoutRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := h.transactions.Checkout(c.Request().Context(), userID, req.DesignID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// ExecutePayment completes an approved payment
func (h *PaymentHandlers) ExecutePayment(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	var req models.ExecutePaymentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	tx, err := h.transactions.Execute(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "transaction": tx})
}

// CancelPayment cancels a pending payment by its approval token
func (h *PaymentHandlers) CancelPayment(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	var req models.CancelPaymentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	tx, err := h.transactions.Cancel(c.Request().Context(), userID, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "transaction": tx})
}
