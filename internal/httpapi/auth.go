package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/auth"
)

// requireAdminKey guards the routes that pull from upstreams or write to the
// store. With no hash configured every request passes.
func (s *Server) requireAdminKey() echo.MiddlewareFunc {
	hash := s.opts.AdminKeyHash
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if hash == "" {
			return next
		}
		return func(c echo.Context) error {
			key := auth.KeyFromHeader(c.Request().Header)
			if key == "" || !auth.VerifyKey(key, hash) {
				s.logger.Warn().
					Str("path", c.Path()).
					Str("remote_ip", c.RealIP()).
					Bool("key_present", key != "").
					Msg("admin key rejected")
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "Authentication required")
}
