package keywords

import (
	"context"
	"math/rand/v2"
	"sync"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/store"
)

const syntheticName = "synthetic"

// SyntheticSource generates plausible Search Console samples: 10 to 15 consecutive
// days per keyword ending today.
type SyntheticSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSyntheticSource(rng *rand.Rand) *SyntheticSource {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SyntheticSource{rng: rng}
}

func (s *SyntheticSource) Name() string { return syntheticName }

func (s *SyntheticSource) Fetch(_ context.Context, keywords []string, days int) FetchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := globaltime.Today()
	out := FetchResult{Synthetic: true, Snapshots: make([]store.KeywordSnapshot, 0, len(keywords)*15)}
	for _, keyword := range keywords {
		points := 10 + s.rng.IntN(6)
		if days > 0 && points > days {
			points = days
		}
		for i := 0; i < points; i++ {
			out.Snapshots = append(out.Snapshots, store.KeywordSnapshot{
				Keyword:     keyword,
				Date:        today.AddDate(0, 0, -i),
				Clicks:      1 + s.rng.IntN(50),
				Impressions: 100 + s.rng.IntN(1000),
				CTR:         s.rng.Float64() * 0.1,
				Position:    5 + s.rng.Float64()*30,
			})
		}
	}
	return out
}
