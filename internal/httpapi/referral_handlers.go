package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"northpointtriallaw.com/opsdash/internal/referral"
	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	uploadField = "csvFile"
	// Multipart framing on top of the file itself.
	uploadBodyLimit       = "6M"
	uploadTooLargeMessage = "CSV file must be 5MB or smaller"
)

// uploadTooLarge turns the body limit's 413 into the same 400 an oversized
// file gets.
func uploadTooLarge(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if isTooLarge(err) {
			return fail(c, http.StatusBadRequest, uploadTooLargeMessage)
		}
		return err
	}
}

func isTooLarge(err error) bool {
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge
}

func (s *Server) handleReferralUpload(c echo.Context) error {
	fh, err := c.FormFile(uploadField)
	if isTooLarge(err) {
		return fail(c, http.StatusBadRequest, uploadTooLargeMessage)
	}
	if err != nil || fh == nil {
		return fail(c, http.StatusBadRequest, "No CSV file uploaded")
	}
	if fh.Size > referral.MaxUploadBytes {
		return fail(c, http.StatusBadRequest, uploadTooLargeMessage)
	}
	if !isCSVUpload(fh.Filename, fh.Header.Get(echo.HeaderContentType)) {
		return fail(c, http.StatusBadRequest, "Only CSV files are allowed")
	}

	f, err := fh.Open()
	if err != nil {
		s.logger.Error().Err(err).Msg("open uploaded csv failed")
		return internalError(c, "Failed to process CSV file", err)
	}
	defer f.Close()

	result, err := s.svc.Referral.Import(c.Request().Context(), f)
	if errors.Is(err, referral.ErrNoTargets) {
		return fail(c, http.StatusBadRequest, "No valid targets found in CSV file")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("referral import failed")
		return internalError(c, "Failed to process CSV file", err)
	}
	return success(c, body{
		"message":   fmt.Sprintf("Processed %d referral targets", result.Processed),
		"processed": result.Processed,
		"total":     result.Total,
		"skipped":   result.Skipped,
		"ids":       result.IDs,
		"demo":      result.Demo,
	})
}

func isCSVUpload(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}

func (s *Server) handleReferralCheck(c echo.Context) error {
	result, err := s.svc.Referral.Check(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("referral check failed")
		return internalError(c, "Failed to check for news and generate emails", err)
	}
	return success(c, body{
		"message":         fmt.Sprintf("Checked %d attorneys, generated %d emails", result.Checked, result.EmailsGenerated),
		"checked":         result.Checked,
		"emailsGenerated": result.EmailsGenerated,
		"errors":          result.Errors,
		"demo":            result.Demo,
	})
}

func (s *Server) handleReferralOutbox(c echo.Context) error {
	drafts, err := s.svc.Referral.Outbox(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list outbox failed")
		return internalError(c, "Failed to fetch outbox", err)
	}
	return success(c, body{
		"drafts": drafts,
		"count":  len(drafts),
		"demo":   s.svc.Referral.Demo(),
	})
}

func (s *Server) handleReferralMarkSent(c echo.Context) error {
	id, ok := parseLeadingInt(c.Param("id"))
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid draft ID")
	}

	err := s.svc.Referral.MarkSent(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "Draft not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("draft_id", id).Msg("mark draft sent failed")
		return internalError(c, "Failed to mark draft as sent", err)
	}
	return success(c, body{
		"message": "Draft marked as sent",
		"draftId": id,
		"demo":    s.svc.Referral.Demo(),
	})
}

func (s *Server) handleReferralTest(c echo.Context) error {
	demo := s.svc.Referral.Demo()
	targets, drafts := s.svc.Memory.ReferralCounts()
	return success(c, body{
		"message":       "Referral routes are working",
		"demo":          demo,
		"memoryTargets": memoryCount(demo, int64(targets)),
		"memoryOutbox":  memoryCount(demo, int64(drafts)),
	})
}
