package handlers

import (
	"net/http"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles registration, login and the current-user lookup
type AuthHandlers struct {
	users services.UserService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(users services.UserService) *AuthHandlers {
	return &AuthHandlers{users: users}
}

// bindValid binds a JSON body and runs the registered validator on it.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return common.Validation("invalid request body", nil)
	}
	return c.Validate(dst)
}

// Register godoc
// @Summary      Register a user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.RegisterRequest  true  "new account"
// @Success      201   {object}  models.AuthResponse
// @Failure      409   {object}  common.ErrorResponse
// @Router       /v1/auth/register [post]
func (h *AuthHandlers) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := h.users.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// Login handles user login with email and password
func (h *AuthHandlers) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := h.users.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c echo.Context) error {
	userID, err := common.UserIDFromEcho(c)
	if err != nil {
		return err
	}
	user, err := h.users.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]*models.User{"user": user})
}
