package httpapi

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/keywords"
)

func (s *Server) handleKeywordsUpdate(c echo.Context) error {
	result, err := s.svc.Keywords.Update(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("keyword update failed")
		return internalError(c, "Failed to update keyword data", err)
	}
	return success(c, body{
		"message":    fmt.Sprintf("Updated keyword data for %d keywords", len(result.Keywords)),
		"keywords":   result.Keywords,
		"dataPoints": result.DataPoints,
		"stored":     result.Stored,
		"runId":      result.RunID,
		"demo":       result.Demo,
	})
}

// handleKeywordsTrends reads ?days the way a lenient integer parse would: a
// leading integer is used and anything else falls back to the default window.
func (s *Server) handleKeywordsTrends(c echo.Context) error {
	days := keywords.DefaultDays
	if v, ok := parseLeadingInt(c.QueryParam("days")); ok && v != 0 {
		days = int(v)
	}

	result, err := s.svc.Keywords.Trends(c.Request().Context(), days)
	if err != nil {
		s.logger.Error().Err(err).Msg("keyword trends failed")
		return internalError(c, "Failed to fetch keyword trends", err)
	}
	return success(c, body{
		"trends": result.Trends,
		"summary": body{
			"totalKeywords": result.TotalKeywords,
			"alertCount":    result.AlertCount,
			"period":        fmt.Sprintf("%d days", result.Days),
			"demo":          result.Demo,
		},
	})
}

func (s *Server) handleKeywordsStatus(c echo.Context) error {
	ctx := c.Request().Context()
	status := s.svc.Keywords.Status(ctx)
	snapshots, _ := s.svc.Memory.CountSnapshots(ctx)
	return success(c, body{
		"status": body{
			"gscInitialized":   status.GSCInitialized,
			"gscAuthenticated": status.GSCAuthenticated,
			"demoMode":         status.DemoMode,
			"targetKeywords":   status.TargetKeywords,
			"memorySnapshots":  memoryCount(status.DemoMode, snapshots),
		},
	})
}

func (s *Server) handleKeywordsMetrics(c echo.Context) error {
	rows, err := s.svc.Keywords.Metrics(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("keyword metrics failed")
		return internalError(c, "Failed to fetch keyword metrics", err)
	}
	return success(c, body{
		"metrics": rows,
		"demo":    s.svc.Keywords.Demo(),
	})
}

func (s *Server) handleKeywordsTest(c echo.Context) error {
	demo := s.svc.Keywords.Demo()
	snapshots, _ := s.svc.Memory.CountSnapshots(c.Request().Context())
	return success(c, body{
		"message":         "Keyword tracking routes are working",
		"demo":            demo,
		"targetKeywords":  s.svc.Keywords.Keywords(),
		"memorySnapshots": memoryCount(demo, snapshots),
	})
}
