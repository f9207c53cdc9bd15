package handlers

import (
	"net/http"

	"stitchmart/internal/services"

	"github.com/labstack/echo/v4"
)

// DashboardHandlers serves the admin back-office summary
type DashboardHandlers struct {
	dashboard services.DashboardService
}

func NewDashboardHandlers(dashboard services.DashboardService) *DashboardHandlers {
	return &DashboardHandlers{dashboard: dashboard}
}

// Stats returns store totals, top sellers and recent sales
func (h *DashboardHandlers) Stats(c echo.Context) error {
	stats, err := h.dashboard.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
