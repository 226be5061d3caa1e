package keywords

import (
	"context"

	"northpointtriallaw.com/opsdash/internal/store"
)

// FetchResult carries daily samples. Synthetic marks generated data.
type FetchResult struct {
	Snapshots []store.KeywordSnapshot
	Synthetic bool
}

// Source produces daily keyword samples for a window of days ending today.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keywords []string, days int) FetchResult
}

// AuthSource is a Source backed by credentials that may be missing or rejected.
type AuthSource interface {
	Source
	Initialized() bool
	Authenticate(ctx context.Context) bool
}
