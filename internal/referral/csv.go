// Package referral imports attorney referral targets, looks for recent news about
// them and drafts congratulation emails into an outbox.
package referral

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"northpointtriallaw.com/opsdash/internal/store"
)

const (
	// MaxUploadBytes caps the size of an uploaded CSV file.
	MaxUploadBytes = 5 << 20
	utf8BOM        = "\ufeff"
)

// ErrNoFile is returned when an upload carries no CSV file.
var ErrNoFile = errors.New("no CSV file uploaded")

// ErrNoTargets is returned when a CSV file has no usable rows.
var ErrNoTargets = errors.New("no valid targets found in CSV file")

// ParseResult holds the valid targets of a CSV file and how many rows were dropped.
type ParseResult struct {
	Targets []store.ReferralTarget
	Skipped int
}

// ParseTargets reads a header-keyed CSV. Rows need first_name, last_name and email;
// firm and city are optional. Emails are trimmed and lowercased.
func ParseTargets(r io.Reader) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, nil
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, utf8BOM)))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out ParseResult
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("read csv row: %w", err)
		}

		target := store.ReferralTarget{
			FirstName: field(record, "first_name"),
			LastName:  field(record, "last_name"),
			Email:     strings.ToLower(field(record, "email")),
			Firm:      field(record, "firm"),
			City:      field(record, "city"),
		}
		if target.FirstName == "" || target.LastName == "" || target.Email == "" {
			out.Skipped++
			continue
		}
		out.Targets = append(out.Targets, target)
	}
	return out, nil
}
