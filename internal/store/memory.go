package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"northpointtriallaw.com/opsdash/internal/globaltime"
)

type snapshotKey struct {
	keyword string
	day     string
}

// Memory is the in-process Store used in demo mode and in tests.
type Memory struct {
	mu sync.RWMutex

	articles     map[string]*Article
	articleOrder []string
	nextArticle  int64

	snapshots     map[snapshotKey]*KeywordSnapshot
	snapshotOrder []snapshotKey
	metrics       map[string]*KeywordMetric
	metricOrder   []string

	history   []RankScore
	nextRank  int64
	latest    map[string]*RankLatest
	rankOrder []string

	targets     map[string]*ReferralTarget
	targetOrder []string
	nextTarget  int64
	outbox      []*OutboxDraft
	nextDraft   int64

	runs    []IngestRun
	nextRun int64
}

func NewMemory() *Memory {
	return &Memory{
		articles:  make(map[string]*Article),
		snapshots: make(map[snapshotKey]*KeywordSnapshot),
		metrics:   make(map[string]*KeywordMetric),
		latest:    make(map[string]*RankLatest),
		targets:   make(map[string]*ReferralTarget),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) MarkNewsStale(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		a.Fresh = false
	}
	return nil
}

func (m *Memory) UpsertArticle(_ context.Context, a Article) (UpsertResult, error) {
	key := strings.TrimSpace(a.URL)
	if key == "" {
		return UpsertResult{}, fmt.Errorf("article url is required")
	}
	now := globaltime.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.articles[key]; ok {
		existing.Title = a.Title
		existing.Tag = a.Tag
		existing.Summary = a.Summary
		existing.ImageURL = a.ImageURL
		existing.PublishedAt = a.PublishedAt.UTC()
		existing.Source = a.Source
		existing.Language = a.Language
		existing.Fresh = true
		existing.UpdatedAt = now
		return UpsertResult{ID: existing.ID, Inserted: false}, nil
	}

	m.nextArticle++
	stored := a
	stored.ID = m.nextArticle
	stored.URL = key
	stored.PublishedAt = a.PublishedAt.UTC()
	stored.Fresh = true
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.articles[key] = &stored
	m.articleOrder = append(m.articleOrder, key)
	return UpsertResult{ID: stored.ID, Inserted: true}, nil
}

func (m *Memory) ListArticles(_ context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	m.mu.RLock()
	out := make([]Article, 0, len(m.articleOrder))
	for _, key := range m.articleOrder {
		out = append(out, *m.articles[key])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetArticle(_ context.Context, id int64) (Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.articles {
		if a.ID == id {
			return *a, nil
		}
	}
	return Article{}, ErrNotFound
}

func (m *Memory) NewsStats(context.Context) (NewsStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := NewsStats{ByTag: make([]TagCount, 0, 6)}
	counts := make(map[string]int64)
	for _, key := range m.articleOrder {
		a := m.articles[key]
		stats.Total++
		if a.Fresh {
			stats.Fresh++
		}
		counts[a.Tag]++
	}
	for tag, n := range counts {
		stats.ByTag = append(stats.ByTag, TagCount{Tag: tag, Count: n})
	}
	sortTagCounts(stats.ByTag)
	return stats, nil
}

func (m *Memory) MarkKeywordsStale(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		s.Fresh = false
	}
	for _, km := range m.metrics {
		km.Fresh = false
	}
	return nil
}

func (m *Memory) UpsertSnapshot(_ context.Context, s KeywordSnapshot) (bool, error) {
	if strings.TrimSpace(s.Keyword) == "" {
		return false, fmt.Errorf("snapshot keyword is required")
	}
	day := globaltime.DateOf(s.Date)
	key := snapshotKey{keyword: s.Keyword, day: day.Format(time.DateOnly)}
	now := globaltime.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := s
	stored.Date = day
	stored.Fresh = true
	stored.CapturedAt = now
	if _, ok := m.snapshots[key]; ok {
		m.snapshots[key] = &stored
		return false, nil
	}
	m.snapshots[key] = &stored
	m.snapshotOrder = append(m.snapshotOrder, key)
	return true, nil
}

func (m *Memory) UpsertMetric(_ context.Context, km KeywordMetric) error {
	if strings.TrimSpace(km.Keyword) == "" {
		return fmt.Errorf("metric keyword is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := km
	stored.Fresh = true
	stored.UpdatedAt = globaltime.UTC()
	if _, ok := m.metrics[km.Keyword]; !ok {
		m.metricOrder = append(m.metricOrder, km.Keyword)
	}
	m.metrics[km.Keyword] = &stored
	return nil
}

func (m *Memory) ListSnapshotsSince(_ context.Context, since time.Time) ([]KeywordSnapshot, error) {
	cutoff := globaltime.DateOf(since)

	m.mu.RLock()
	out := make([]KeywordSnapshot, 0, len(m.snapshotOrder))
	for _, key := range m.snapshotOrder {
		s := m.snapshots[key]
		if s.Date.Before(cutoff) {
			continue
		}
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Keyword != out[j].Keyword {
			return out[i].Keyword < out[j].Keyword
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (m *Memory) ListMetrics(context.Context) ([]KeywordMetric, error) {
	m.mu.RLock()
	out := make([]KeywordMetric, 0, len(m.metricOrder))
	for _, keyword := range m.metricOrder {
		out = append(out, *m.metrics[keyword])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}

func (m *Memory) CountSnapshots(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.snapshots)), nil
}

func (m *Memory) MarkRanksStale(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.latest {
		l.Fresh = false
	}
	return nil
}

func (m *Memory) AppendRankScore(_ context.Context, s RankScore) (RankScore, error) {
	if strings.TrimSpace(s.Model) == "" {
		return RankScore{}, fmt.Errorf("rank model is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRank++
	stored := s
	stored.ID = m.nextRank
	stored.Rank = copyInt(s.Rank)
	stored.CreatedAt = globaltime.UTC()
	m.history = append(m.history, stored)
	return stored, nil
}

func (m *Memory) UpsertRankLatest(_ context.Context, l RankLatest) error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("rank model is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := l
	stored.Rank = copyInt(l.Rank)
	stored.Fresh = true
	stored.UpdatedAt = globaltime.UTC()
	if _, ok := m.latest[l.Model]; !ok {
		m.rankOrder = append(m.rankOrder, l.Model)
	}
	m.latest[l.Model] = &stored
	return nil
}

func (m *Memory) ListRankHistory(_ context.Context, limit int) ([]RankScore, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RankScore, 0, min(limit, len(m.history)))
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.history[i]
		s.Rank = copyInt(s.Rank)
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) ListRankLatest(context.Context) ([]RankLatest, error) {
	m.mu.RLock()
	out := make([]RankLatest, 0, len(m.rankOrder))
	for _, model := range m.rankOrder {
		l := *m.latest[model]
		l.Rank = copyInt(l.Rank)
		out = append(out, l)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

func (m *Memory) CountRankHistory(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.history)), nil
}

func (m *Memory) UpsertTarget(_ context.Context, t ReferralTarget) (UpsertResult, error) {
	email := strings.ToLower(strings.TrimSpace(t.Email))
	if email == "" {
		return UpsertResult{}, fmt.Errorf("target email is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.targets[email]; ok {
		existing.FirstName = t.FirstName
		existing.LastName = t.LastName
		existing.Firm = t.Firm
		existing.City = t.City
		return UpsertResult{ID: existing.ID, Inserted: false}, nil
	}

	m.nextTarget++
	stored := t
	stored.ID = m.nextTarget
	stored.Email = email
	stored.CreatedAt = globaltime.UTC()
	m.targets[email] = &stored
	m.targetOrder = append(m.targetOrder, email)
	return UpsertResult{ID: stored.ID, Inserted: true}, nil
}

func (m *Memory) ListTargets(context.Context) ([]ReferralTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ReferralTarget, 0, len(m.targetOrder))
	for _, email := range m.targetOrder {
		out = append(out, *m.targets[email])
	}
	return out, nil
}

func (m *Memory) AddDraft(_ context.Context, d OutboxDraft) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.targetByID(d.TargetID) == nil {
		return 0, fmt.Errorf("draft target %d: %w", d.TargetID, ErrNotFound)
	}

	m.nextDraft++
	stored := d
	stored.ID = m.nextDraft
	stored.Sent = false
	stored.CreatedAt = globaltime.UTC()
	m.outbox = append(m.outbox, &stored)
	return stored.ID, nil
}

func (m *Memory) ListUnsentDrafts(context.Context) ([]OutboxDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]OutboxDraft, 0, len(m.outbox))
	for i := len(m.outbox) - 1; i >= 0; i-- {
		d := *m.outbox[i]
		if d.Sent {
			continue
		}
		if t := m.targetByID(d.TargetID); t != nil {
			d.TargetName = strings.TrimSpace(t.FirstName + " " + t.LastName)
			d.TargetEmail = t.Email
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) MarkDraftSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.outbox {
		if d.ID == id {
			d.Sent = true
			return nil
		}
	}
	return ErrNotFound
}

// ReferralCounts returns how many targets and drafts are held, sent drafts included.
func (m *Memory) ReferralCounts() (targets, drafts int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.targets), len(m.outbox)
}

func (m *Memory) RecordRun(_ context.Context, r IngestRun) (int64, error) {
	if strings.TrimSpace(r.Module) == "" || strings.TrimSpace(r.RunID) == "" {
		return 0, fmt.Errorf("run module and id are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRun++
	stored := r
	stored.ID = m.nextRun
	m.runs = append(m.runs, stored)
	return stored.ID, nil
}

func (m *Memory) ListRuns(_ context.Context, module string, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	module = strings.TrimSpace(module)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]IngestRun, 0, min(limit, len(m.runs)))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if module != "" && m.runs[i].Module != module {
			continue
		}
		out = append(out, m.runs[i])
	}
	return out, nil
}

// targetByID expects m.mu to be held.
func (m *Memory) targetByID(id int64) *ReferralTarget {
	for _, t := range m.targets {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func sortTagCounts(counts []TagCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tag < counts[j].Tag
	})
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
