package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/union"
)

func (s *Server) handleUnionCampaigns(c echo.Context) error {
	campaigns := s.svc.Union.Campaigns()
	return success(c, body{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}

func (s *Server) handleUnionStats(c echo.Context) error {
	return success(c, body{"statistics": s.svc.Union.Statistics()})
}

func (s *Server) handleUnionActivity(c echo.Context) error {
	return success(c, body{"activity": s.svc.Union.Activity(globaltime.UTC())})
}

func (s *Server) handleUnionDashboard(c echo.Context) error {
	return success(c, body{"data": s.svc.Union.Dashboard(globaltime.UTC())})
}

func (s *Server) handleUnionJoin(c echo.Context) error {
	var req map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		req = nil
	}

	id, err := union.ParseCampaignID(req["campaignId"])
	if errors.Is(err, union.ErrMissingID) {
		return fail(c, http.StatusBadRequest, "Campaign ID is required")
	}
	if err != nil {
		return fail(c, http.StatusNotFound, "Campaign not found")
	}

	campaign, err := s.svc.Union.Join(id)
	if errors.Is(err, union.ErrNotFound) {
		return fail(c, http.StatusNotFound, "Campaign not found")
	}
	if err != nil {
		return internalError(c, "Failed to join campaign", err)
	}
	return success(c, body{
		"message":  "Successfully joined campaign",
		"campaign": campaign,
	})
}

func (s *Server) handleUnionTest(c echo.Context) error {
	return success(c, body{
		"message":   "Union routes are working",
		"timestamp": globaltime.UTC(),
	})
}
