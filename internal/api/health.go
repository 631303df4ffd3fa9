package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Healthz is the liveness probe endpoint
func Healthz() func(c echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "xmedia",
		})
	}
}
