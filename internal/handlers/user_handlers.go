package handlers

import (
	"net/http"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/labstack/echo/v4"
)

// UserHandlers handles profile, favorites and purchase history
type UserHandlers struct {
	users        services.UserService
	transactions services.TransactionService
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(users services.UserService, transactions services.TransactionService) *UserHandlers {
	return &UserHandlers{users: users, transactions: transactions}
}

// GetProfile returns the user with favorite designs expanded
func (h *UserHandlers) GetProfile(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	profile, err := h.users.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile changes username and/or email
func (h *UserHandlers) UpdateProfile(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	var req models.ProfileUpdate
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ToggleFavorite adds or removes a design from the user's favorites
func (h *UserHandlers) ToggleFavorite(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	designID, err := common.ParseID(c.Param("id"), "id")
	if err != nil {
		return err
	}
	favorited, err := h.users.ToggleFavorite(c.Request().Context(), userID, designID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"favorited": favorited})
}

// Purchases lists the user's completed transactions
func (h *UserHandlers) Purchases(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	purchases, err := h.transactions.Purchases(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"purchases": purchases})
}
