package keywords

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/store"
)

var targetKeywords = []string{"personal injury lawyer sf", "wrongful death lawyer sf", "car accident attorney sf"}

type memoryKeywordStore struct {
	*store.Memory
	demo bool
}

func (m memoryKeywordStore) Demo() bool { return m.demo }

type fakeAuthSource struct {
	initialized   bool
	authenticated bool
	result        FetchResult
	calls         int
}

func (f *fakeAuthSource) Name() string                      { return "fake" }
func (f *fakeAuthSource) Initialized() bool                 { return f.initialized }
func (f *fakeAuthSource) Authenticate(context.Context) bool { return f.authenticated }
func (f *fakeAuthSource) Fetch(context.Context, []string, int) FetchResult {
	f.calls++
	return f.result
}

func pinNow(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	t.Cleanup(globaltime.ResetTime)
	return now
}

func TestSyntheticSourceRanges(t *testing.T) {
	pinNow(t)
	src := NewSyntheticSource(rand.New(rand.NewPCG(1, 2)))

	got := src.Fetch(context.Background(), targetKeywords, 90)
	require.True(t, got.Synthetic)

	perKeyword := map[string]int{}
	for _, s := range got.Snapshots {
		perKeyword[s.Keyword]++
		assert.GreaterOrEqual(t, s.Clicks, 1)
		assert.LessOrEqual(t, s.Clicks, 50)
		assert.GreaterOrEqual(t, s.Impressions, 100)
		assert.Less(t, s.Impressions, 1100)
		assert.GreaterOrEqual(t, s.CTR, 0.0)
		assert.Less(t, s.CTR, 0.1)
		assert.GreaterOrEqual(t, s.Position, 5.0)
		assert.Less(t, s.Position, 35.0)
		assert.False(t, s.Date.After(globaltime.Today()))
	}
	require.Len(t, perKeyword, 3)
	for keyword, n := range perKeyword {
		assert.GreaterOrEqual(t, n, 10, keyword)
		assert.LessOrEqual(t, n, 15, keyword)
	}
}

func TestUpdateFallsBackToSynthetic(t *testing.T) {
	pinNow(t)
	mem := store.NewMemory()
	primary := &fakeAuthSource{initialized: true, authenticated: false}
	svc := NewService(memoryKeywordStore{Memory: mem}, primary, NewSyntheticSource(rand.New(rand.NewPCG(3, 4))), targetKeywords, zerolog.Nop())

	res, err := svc.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, primary.calls)
	assert.True(t, res.Synthetic)
	assert.True(t, res.Demo)
	assert.Equal(t, res.DataPoints, res.Stored)
	assert.NotEmpty(t, res.RunID)

	count, err := mem.CountSnapshots(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, res.Stored, count)

	metrics, err := svc.Metrics(context.Background())
	require.NoError(t, err)
	assert.Len(t, metrics, 3)
}

func TestUpdateDedupesAndRollsUp(t *testing.T) {
	now := pinNow(t)
	day := globaltime.DateOf(now)
	primary := &fakeAuthSource{initialized: true, authenticated: true, result: FetchResult{Snapshots: []store.KeywordSnapshot{
		{Keyword: "k", Date: day, Clicks: 1, Position: 10},
		{Keyword: "k", Date: day.Add(3 * time.Hour), Clicks: 5, Position: 20},
		{Keyword: "k", Date: day.AddDate(0, 0, -1), Clicks: 7, Position: 30},
	}}}
	mem := store.NewMemory()
	svc := NewService(memoryKeywordStore{Memory: mem}, primary, nil, []string{"k"}, zerolog.Nop())

	res, err := svc.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Synthetic)
	assert.False(t, res.Demo)
	assert.Equal(t, 3, res.DataPoints)
	assert.Equal(t, 2, res.Stored)

	metrics, err := mem.ListMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 12, metrics[0].Clicks)
	assert.InDelta(t, 25, metrics[0].Position, 1e-9)
}

func TestTrendsDefaultsAndAlerts(t *testing.T) {
	now := pinNow(t)
	ctx := context.Background()
	mem := store.NewMemory()
	for i, p := range []float64{30, 30, 30} {
		_, err := mem.UpsertSnapshot(ctx, store.KeywordSnapshot{Keyword: "k", Date: now.AddDate(0, 0, -i), Position: p})
		require.NoError(t, err)
	}
	svc := NewService(memoryKeywordStore{Memory: mem, demo: true}, nil, nil, []string{"k"}, zerolog.Nop())

	res, err := svc.Trends(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 90, res.Days)
	assert.Equal(t, 1, res.TotalKeywords)
	assert.Equal(t, 1, res.AlertCount)
	assert.True(t, res.Demo)
}

func TestStatus(t *testing.T) {
	svc := NewService(memoryKeywordStore{Memory: store.NewMemory()}, &fakeAuthSource{initialized: true, authenticated: true}, nil, targetKeywords, zerolog.Nop())
	st := svc.Status(context.Background())
	assert.True(t, st.GSCInitialized)
	assert.True(t, st.GSCAuthenticated)
	assert.Equal(t, targetKeywords, st.TargetKeywords)

	uninit := NewService(memoryKeywordStore{Memory: store.NewMemory()}, nil, nil, targetKeywords, zerolog.Nop())
	st = uninit.Status(context.Background())
	assert.False(t, st.GSCInitialized)
	assert.False(t, st.GSCAuthenticated)
}

func TestDecodeServiceKey(t *testing.T) {
	raw := `{"type":"service_account","client_email":"svc@example.iam.gserviceaccount.com"}`

	got, err := DecodeServiceKey(base64.StdEncoding.EncodeToString([]byte(raw)))
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(got))

	got, err = DecodeServiceKey(raw)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(got))

	_, err = DecodeServiceKey("%%%not-base64")
	assert.Error(t, err)
}

func TestNewSearchConsoleWithoutKeyIsUninitialized(t *testing.T) {
	sc := NewSearchConsole(context.Background(), SearchConsoleConfig{SiteURL: "https://northpointtriallaw.com/"}, zerolog.Nop())
	assert.False(t, sc.Initialized())
	assert.False(t, sc.Authenticate(context.Background()))
	assert.Error(t, sc.InitError())
}

func TestSearchConsoleFetchParsesRows(t *testing.T) {
	now := pinNow(t)
	var bodies []searchconsole.SearchAnalyticsQueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchconsole.SearchAnalyticsQueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies = append(bodies, req)

		keyword := req.DimensionFilterGroups[0].Filters[0].Expression
		if keyword == "broken" {
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchconsole.SearchAnalyticsQueryResponse{Rows: []*searchconsole.ApiDataRow{
			{Keys: []string{keyword, "2025-03-09"}, Clicks: 4, Impressions: 120, Ctr: 0.033, Position: 12.5},
			{Keys: []string{keyword}},
		}})
	}))
	defer srv.Close()

	svc, err := searchconsole.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	sc := newSearchConsoleWithService("https://northpointtriallaw.com/", svc, nil, zerolog.Nop())

	got := sc.Fetch(context.Background(), []string{"personal injury lawyer sf", "broken"}, 90)
	assert.False(t, got.Synthetic)
	require.Len(t, got.Snapshots, 1)
	assert.Equal(t, "personal injury lawyer sf", got.Snapshots[0].Keyword)
	assert.Equal(t, 4, got.Snapshots[0].Clicks)
	assert.InDelta(t, 12.5, got.Snapshots[0].Position, 1e-9)

	require.Len(t, bodies, 2)
	assert.Equal(t, []string{"query", "date"}, bodies[0].Dimensions)
	assert.EqualValues(t, 1000, bodies[0].RowLimit)
	assert.Equal(t, globaltime.DateOf(now).Format(time.DateOnly), bodies[0].EndDate)
	assert.Equal(t, globaltime.DateOf(now).AddDate(0, 0, -90).Format(time.DateOnly), bodies[0].StartDate)
}
