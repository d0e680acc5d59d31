package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// StoreStatus reports whether the backing store is reachable.
type StoreStatus interface {
	Up() bool
}

type HealthHandler struct {
	store StoreStatus
}

func NewHealthHandler(store StoreStatus) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck always answers 200; "database" carries store connectivity.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "healthy",
		"service":  "nano-social",
		"database": h.store.Up(),
	})
}
