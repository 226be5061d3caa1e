package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/ingest"
)

const maxRunsLimit = 200

var runModules = map[string]struct{}{
	"news":     {},
	"keywords": {},
	"airank":   {},
}

func (s *Server) handleIngestRuns(c echo.Context) error {
	module := strings.ToLower(strings.TrimSpace(c.QueryParam("module")))
	if _, ok := runModules[module]; module != "" && !ok {
		return fail(c, http.StatusBadRequest, "module must be news, keywords or airank")
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), ingest.DefaultListLimit, 1, maxRunsLimit)
	if err != nil {
		return fail(c, http.StatusBadRequest, "limit "+err.Error())
	}

	runs, err := s.svc.Runs.Recent(c.Request().Context(), module, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list ingest runs failed")
		return internalError(c, "Failed to fetch ingest runs", err)
	}
	return success(c, body{
		"runs":  runs,
		"count": len(runs),
	})
}
