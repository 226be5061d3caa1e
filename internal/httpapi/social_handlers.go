package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/social"
)

// handleSocialGenerate answers with a bare JSON array of captions. Errors are
// {"error": message} without the success flag.
func (s *Server) handleSocialGenerate(c echo.Context) error {
	var req map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		req = nil
	}

	captions, err := s.svc.Social.Generate(c.Request().Context(), req["prompt"])
	if err != nil {
		var serr *social.Error
		if !errors.As(err, &serr) {
			serr = social.MapUpstreamError(err)
		}
		if serr.Status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Int("status", serr.Status).Msg("caption generation failed")
		}
		return c.JSON(serr.Status, map[string]string{"error": serr.Message})
	}
	return c.JSON(http.StatusOK, captions)
}
