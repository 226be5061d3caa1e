package httpapi

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) handleAIRank(c echo.Context) error {
	result, err := s.svc.AIRank.Rank(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("ai ranking failed")
		return internalError(c, "Failed to perform AI ranking", err)
	}
	return success(c, body{
		"results":   result.Results,
		"timestamp": result.Timestamp,
		"runId":     result.RunID,
		"demo":      result.Demo,
	})
}

func (s *Server) handleAIHistory(c echo.Context) error {
	rows, err := s.svc.AIRank.History(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("ai ranking history failed")
		return internalError(c, "Failed to fetch AI ranking history", err)
	}
	return success(c, body{
		"results": rows,
		"demo":    s.svc.AIRank.Demo(),
	})
}

func (s *Server) handleAILatest(c echo.Context) error {
	rows, err := s.svc.AIRank.Latest(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("latest ai ranking failed")
		return internalError(c, "Failed to fetch latest AI ranking", err)
	}
	return success(c, body{
		"results": rows,
		"demo":    s.svc.AIRank.Demo(),
	})
}

func (s *Server) handleAITest(c echo.Context) error {
	demo := s.svc.AIRank.Demo()
	n, _ := s.svc.Memory.CountRankHistory(c.Request().Context())
	return success(c, body{
		"message":       "AI ranking routes are working",
		"demo":          demo,
		"memoryResults": memoryCount(demo, n),
	})
}
