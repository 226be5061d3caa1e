package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/globaltime"
)

func (s *Server) handleHealthStatus(c echo.Context) error {
	report, err := s.svc.Health.Check(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusInternalServerError, body{
			"success": false,
			"error":   "Health check failed",
			"health":  report,
		})
	}
	return success(c, body{"health": report})
}

func (s *Server) handleHealthPing(c echo.Context) error {
	return success(c, body{
		"message":   "pong",
		"timestamp": globaltime.UTC(),
	})
}
