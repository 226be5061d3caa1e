package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/metrics"
)

// body is a JSON object response. Every response carries "success".
type body map[string]any

func success(c echo.Context, data body) error {
	out := body{"success": true}
	for k, v := range data {
		out[k] = v
	}
	return c.JSON(http.StatusOK, out)
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, body{
		"success": false,
		"error":   message,
	})
}

// internalError reports a 500. err is surfaced as "message" when present.
func internalError(c echo.Context, message string, err error) error {
	out := body{
		"success": false,
		"error":   message,
	}
	if err != nil {
		out["message"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, out)
}

// memoryCount reports n only while demo mode is on.
func memoryCount(demo bool, n int64) any {
	if demo {
		return n
	}
	return "N/A"
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// parseLeadingInt reads the integer prefix of raw, ignoring whatever follows it.
func parseLeadingInt(raw string) (int64, bool) {
	digits := leadingInt.FindString(strings.TrimSpace(raw))
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil && !c.Response().Committed {
			status = http.StatusInternalServerError
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
