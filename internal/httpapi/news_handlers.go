package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/news"
	"northpointtriallaw.com/opsdash/internal/reader"
	"northpointtriallaw.com/opsdash/internal/store"
)

const maxPreviewChars = 20000

func (s *Server) handleNewsAll(c echo.Context) error {
	articles, err := s.svc.News.List(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list articles failed")
		return internalError(c, "Failed to fetch articles", err)
	}
	return success(c, body{
		"count":    len(articles),
		"articles": articles,
		"demo":     s.svc.News.Demo(),
	})
}

func (s *Server) handleNewsRefresh(c echo.Context) error {
	result, err := s.svc.News.Refresh(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("news refresh failed")
		return internalError(c, "Failed to refresh news articles", err)
	}
	return success(c, body{
		"message": fmt.Sprintf("Crawled %d articles", result.Counts.Stored),
		"counts": body{
			"eventRegistry": result.Counts.BySource[news.EventRegistryName],
			"total":         result.Counts.Total,
			"inserted":      result.Counts.Stored,
			"new":           result.Counts.New,
			"rejected":      result.Counts.Rejected,
		},
		"runId": result.RunID,
		"demo":  result.Demo,
	})
}

func (s *Server) handleNewsStats(c echo.Context) error {
	stats, err := s.svc.News.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("news stats failed")
		return internalError(c, "Failed to fetch statistics", err)
	}
	return success(c, body{
		"stats": stats,
		"demo":  s.svc.News.Demo(),
	})
}

func (s *Server) handleNewsTest(c echo.Context) error {
	var count int64
	if stats, err := s.svc.Memory.NewsStats(c.Request().Context()); err == nil {
		count = stats.Total
	}
	return success(c, body{
		"message":     "News routes are working",
		"demo":        s.svc.News.Demo(),
		"memoryCount": count,
	})
}

func (s *Server) handleNewsPreview(c echo.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return fail(c, http.StatusBadRequest, "Invalid article ID")
	}
	maxChars, err := parsePositiveInt(c.QueryParam("max_chars"), reader.DefaultPreviewChars, 1, maxPreviewChars)
	if err != nil {
		return fail(c, http.StatusBadRequest, "max_chars "+err.Error())
	}

	preview, err := s.svc.News.Preview(c.Request().Context(), id, maxChars)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "Article not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("article_id", id).Msg("article preview failed")
		return internalError(c, "Failed to load article preview", err)
	}
	return success(c, body{
		"article": preview.Article,
		"preview": preview.Preview,
		"demo":    s.svc.News.Demo(),
	})
}
