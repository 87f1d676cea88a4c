package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xnstat/internal/service"
)

type HealthHandler struct {
	svc service.HealthService
}

func NewHealthHandler(svc service.HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Livez はプロセスが生きていれば 200。
func (h *HealthHandler) Livez(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Readyz は ready フラグと DB 疎通の両方を見る。
func (h *HealthHandler) Readyz(c echo.Context) error {
	if !h.svc.Ready(c.Request().Context()) {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}
	return c.String(http.StatusOK, "ready")
}

func (h *HealthHandler) Healthz(c echo.Context) error {
	if err := h.svc.Check(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"ready":  h.svc.IsReady(),
	})
}
