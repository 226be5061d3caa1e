package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"northpointtriallaw.com/opsdash/internal/airank"
	"northpointtriallaw.com/opsdash/internal/auth"
	"northpointtriallaw.com/opsdash/internal/globaltime"
	"northpointtriallaw.com/opsdash/internal/health"
	"northpointtriallaw.com/opsdash/internal/ingest"
	"northpointtriallaw.com/opsdash/internal/keywords"
	"northpointtriallaw.com/opsdash/internal/news"
	"northpointtriallaw.com/opsdash/internal/reader"
	"northpointtriallaw.com/opsdash/internal/referral"
	"northpointtriallaw.com/opsdash/internal/retry"
	"northpointtriallaw.com/opsdash/internal/social"
	"northpointtriallaw.com/opsdash/internal/store"
	"northpointtriallaw.com/opsdash/internal/union"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticProvider struct {
	name   string
	answer string
}

func (p staticProvider) Name() string                                  { return p.name }
func (p staticProvider) Query(context.Context, string) (string, error) { return p.answer, nil }

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) []referral.Story { return nil }

type testEnv struct {
	server  *Server
	gateway *store.Gateway
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	logger := zerolog.Nop()
	mem := store.NewMemory()
	if err := store.SeedDemo(context.Background(), mem); err != nil {
		t.Fatalf("seed demo store: %v", err)
	}
	gw := store.NewGateway(nil, mem, logger)
	runs := ingest.NewRecorder(gw, logger)

	svc := Services{
		News:     news.NewService(gw, nil, reader.FetchOptions{Timeout: time.Second}, logger).WithRunLog(runs),
		Keywords: keywords.NewService(gw, nil, keywords.NewSyntheticSource(nil), []string{"personal injury lawyer", "car accident attorney"}, logger).WithRunLog(runs),
		AIRank: airank.NewService(gw, []airank.Provider{
			staticProvider{name: airank.ModelOpenAI, answer: "1. Alpha Law\n2. Northpoint Trial Law"},
			staticProvider{name: airank.ModelClaude, answer: "nothing useful"},
		}, "Who are the top lawyers?", "northpoint", logger).WithRunLog(runs),
		Referral: referral.NewService(gw, stubSearcher{}, referral.NewOpenAIEmailWriter("", "", nil, retry.DefaultConfig(), logger), logger),
		Social:   social.NewGenerator("", "", nil, logger),
		Health:   health.NewChecker(gw, health.NewOpenAIChecker("", "", nil), nil, false, logger),
		Runs:     runs,
		Union:    union.NewBoard(),
		Memory:   mem,
	}
	return testEnv{server: NewServer(svc, logger, Options{}), gateway: gw}
}

func (env testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, out
}

func jsonRequest(method, target, payload string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func csvUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadField, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/referral/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNewsRoutesServeSeededArticlesInDemo(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, httptest.NewRequest(http.MethodGet, "/news/all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if out["success"] != true || out["demo"] != true {
		t.Fatalf("unexpected envelope: %v", out)
	}
	seeded := len(store.DemoArticles(globaltime.UTC()))
	if got := int(out["count"].(float64)); got != seeded {
		t.Fatalf("unexpected article count: got %d want %d", got, seeded)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/news/stats", nil))
	stats := out["stats"].(map[string]any)
	if int(stats["total"].(float64)) != seeded {
		t.Fatalf("unexpected stats: %v", stats)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/news/test", nil))
	if out["message"] != "News routes are working" || int(out["memoryCount"].(float64)) != seeded {
		t.Fatalf("unexpected test payload: %v", out)
	}
}

func TestNewsPreview(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("A jury returned a verdict for the injured cyclist."))
	}))
	defer page.Close()

	env := newTestEnv(t)
	res, err := env.gateway.UpsertArticle(context.Background(), store.Article{
		Title:       "Cyclist verdict",
		URL:         page.URL + "/verdict",
		Tag:         "crash",
		Summary:     "summary",
		PublishedAt: globaltime.UTC(),
		Source:      "Test",
	})
	if err != nil {
		t.Fatalf("upsert article: %v", err)
	}

	rec, out := env.do(t, httptest.NewRequest(http.MethodGet, "/news/"+strconv.FormatInt(res.ID, 10)+"/preview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	preview := out["preview"].(map[string]any)
	if preview["source"] != reader.SourceReader || preview["text"] != "A jury returned a verdict for the injured cyclist." {
		t.Fatalf("unexpected preview: %v", preview)
	}

	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/news/abc/preview", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", rec.Code)
	}
	rec, out = env.do(t, httptest.NewRequest(http.MethodGet, "/news/9999/preview", nil))
	if rec.Code != http.StatusNotFound || out["error"] != "Article not found" {
		t.Fatalf("expected 404, got %d %v", rec.Code, out)
	}
}

func TestKeywordRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, httptest.NewRequest(http.MethodPost, "/keywords/update", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if out["message"] != "Updated keyword data for 2 keywords" || out["demo"] != true {
		t.Fatalf("unexpected update payload: %v", out)
	}
	if out["runId"] == "" || out["stored"].(float64) == 0 {
		t.Fatalf("expected stored snapshots and a run id: %v", out)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/keywords/trends?days=abc", nil))
	summary := out["summary"].(map[string]any)
	if summary["period"] != "90 days" || summary["totalKeywords"].(float64) != 2 {
		t.Fatalf("unexpected trends summary: %v", summary)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/keywords/trends?days=7d", nil))
	if out["summary"].(map[string]any)["period"] != "7 days" {
		t.Fatalf("expected leading integer to be used: %v", out["summary"])
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/keywords/status", nil))
	status := out["status"].(map[string]any)
	if status["gscInitialized"] != false || status["demoMode"] != true {
		t.Fatalf("unexpected status: %v", status)
	}
	if _, ok := status["memorySnapshots"].(float64); !ok {
		t.Fatalf("expected numeric memorySnapshots in demo, got %v", status["memorySnapshots"])
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/keywords/metrics", nil))
	if len(out["metrics"].([]any)) != 2 {
		t.Fatalf("unexpected metrics: %v", out["metrics"])
	}
}

func TestAIRankRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, httptest.NewRequest(http.MethodPost, "/ai/rank", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	results := out["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("unexpected results: %v", results)
	}
	first := results[0].(map[string]any)
	if first["model"] != airank.ModelOpenAI || first["score"].(float64) != 4 || first["rank"].(float64) != 2 {
		t.Fatalf("unexpected first result: %v", first)
	}
	second := results[1].(map[string]any)
	if second["score"].(float64) != 0 || second["rank"] != nil {
		t.Fatalf("unexpected second result: %v", second)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/ai/history", nil))
	if len(out["results"].([]any)) != 2 {
		t.Fatalf("unexpected history: %v", out["results"])
	}
	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/ai/latest", nil))
	if len(out["results"].([]any)) != 2 {
		t.Fatalf("unexpected latest: %v", out["results"])
	}
	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/ai/test", nil))
	if out["memoryResults"].(float64) != 2 {
		t.Fatalf("unexpected test payload: %v", out)
	}
}

func TestReferralFlow(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, csvUpload(t, "targets.csv", "first_name,last_name,email,firm\nJane,Doe, JANE@Example.com ,Doe LLP\nNo,Email,,\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if out["message"] != "Processed 1 referral targets" || out["skipped"].(float64) != 1 {
		t.Fatalf("unexpected upload payload: %v", out)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodPost, "/referral/check", nil))
	if out["message"] != "Checked 1 attorneys, generated 1 emails" {
		t.Fatalf("unexpected check payload: %v", out)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/referral/outbox", nil))
	drafts := out["drafts"].([]any)
	if len(drafts) != 1 {
		t.Fatalf("unexpected outbox: %v", out)
	}
	draft := drafts[0].(map[string]any)
	if draft["target_email"] != "jane@example.com" || draft["target_name"] != "Jane Doe" {
		t.Fatalf("unexpected draft: %v", draft)
	}

	draftID := int64(draft["id"].(float64))
	rec, out = env.do(t, httptest.NewRequest(http.MethodPatch, "/referral/outbox/"+strconv.FormatInt(draftID, 10)+"/sent", nil))
	if rec.Code != http.StatusOK || out["message"] != "Draft marked as sent" {
		t.Fatalf("unexpected mark-sent response: %d %v", rec.Code, out)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/referral/outbox", nil))
	if out["count"].(float64) != 0 {
		t.Fatalf("sent drafts must leave the outbox: %v", out)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/referral/test", nil))
	if out["memoryTargets"].(float64) != 1 || out["memoryOutbox"].(float64) != 1 {
		t.Fatalf("unexpected test payload: %v", out)
	}
}

func TestReferralRejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		req    *http.Request
		status int
		error  string
	}{
		{
			name:   "no file",
			req:    httptest.NewRequest(http.MethodPost, "/referral/upload", nil),
			status: http.StatusBadRequest,
			error:  "No CSV file uploaded",
		},
		{
			name:   "wrong type",
			req:    csvUpload(t, "targets.xlsx", "first_name,last_name,email\n"),
			status: http.StatusBadRequest,
			error:  "Only CSV files are allowed",
		},
		{
			name:   "file over 5MB",
			req:    csvUpload(t, "targets.csv", strings.Repeat("a", 5<<20+512<<10)),
			status: http.StatusBadRequest,
			error:  "CSV file must be 5MB or smaller",
		},
		{
			name:   "body over limit",
			req:    csvUpload(t, "targets.csv", strings.Repeat("a", 7<<20)),
			status: http.StatusBadRequest,
			error:  "CSV file must be 5MB or smaller",
		},
		{
			name:   "no valid rows",
			req:    csvUpload(t, "targets.csv", "first_name,last_name,email\nJane,,\n"),
			status: http.StatusBadRequest,
			error:  "No valid targets found in CSV file",
		},
		{
			name:   "invalid draft id",
			req:    httptest.NewRequest(http.MethodPatch, "/referral/outbox/abc/sent", nil),
			status: http.StatusBadRequest,
			error:  "Invalid draft ID",
		},
		{
			name:   "unknown draft",
			req:    httptest.NewRequest(http.MethodPatch, "/referral/outbox/404/sent", nil),
			status: http.StatusNotFound,
			error:  "Draft not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := env.do(t, tc.req)
			if rec.Code != tc.status || out["error"] != tc.error || out["success"] != false {
				t.Fatalf("unexpected response: got %d %v want %d %q", rec.Code, out, tc.status, tc.error)
			}
		})
	}
}

func TestSocialGenerateErrors(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, jsonRequest(http.MethodPost, "/social/generate", `{"prompt":"ab"}`))
	if rec.Code != http.StatusBadRequest || out["error"] != "Prompt must be at least 3 characters long." {
		t.Fatalf("unexpected validation response: %d %v", rec.Code, out)
	}
	if _, ok := out["success"]; ok {
		t.Fatalf("social errors carry only the error field: %v", out)
	}

	rec, out = env.do(t, jsonRequest(http.MethodPost, "/social/generate", `not json`))
	if rec.Code != http.StatusBadRequest || out["error"] != "Prompt is required and must be a string." {
		t.Fatalf("unexpected response for bad body: %d %v", rec.Code, out)
	}

	rec, _ = env.do(t, jsonRequest(http.MethodPost, "/social/generate", `{"prompt":"safe driving tips"}`))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a key, got %d", rec.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, httptest.NewRequest(http.MethodGet, "/health/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	report := out["health"].(map[string]any)
	if report["overall"] != health.OverallDegraded {
		t.Fatalf("demo database must degrade: %v", report)
	}
	services := report["services"].(map[string]any)
	if services["database"].(map[string]any)["status"] != "demo mode" {
		t.Fatalf("unexpected database service: %v", services["database"])
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ping", nil))
	if out["message"] != "pong" {
		t.Fatalf("unexpected ping: %v", out)
	}
}

func TestUnionRoutes(t *testing.T) {
	env := newTestEnv(t)

	_, out := env.do(t, httptest.NewRequest(http.MethodGet, "/union/campaigns", nil))
	if out["total"].(float64) != 3 {
		t.Fatalf("unexpected campaigns: %v", out)
	}
	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/union/dashboard", nil))
	data := out["data"].(map[string]any)
	if len(data["campaigns"].([]any)) != 2 {
		t.Fatalf("dashboard lists active campaigns only: %v", data)
	}

	rec, out := env.do(t, jsonRequest(http.MethodPost, "/union/join-campaign", `{"campaignId":"1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	campaign := out["campaign"].(map[string]any)
	if campaign["participants"].(float64) != 1248 || campaign["progress"].(float64) != 62 {
		t.Fatalf("unexpected campaign: %v", campaign)
	}

	rec, out = env.do(t, jsonRequest(http.MethodPost, "/union/join-campaign", `{}`))
	if rec.Code != http.StatusBadRequest || out["error"] != "Campaign ID is required" {
		t.Fatalf("unexpected missing id response: %d %v", rec.Code, out)
	}
	rec, out = env.do(t, jsonRequest(http.MethodPost, "/union/join-campaign", `{"campaignId":42}`))
	if rec.Code != http.StatusNotFound || out["error"] != "Campaign not found" {
		t.Fatalf("unexpected unknown id response: %d %v", rec.Code, out)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || out["success"] != false || out["error"] != "Not Found" {
		t.Fatalf("unexpected response: %d %v", rec.Code, out)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestAdminKeyGuardsMutatingRoutes(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("opsdash-admin-key-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}
	env.server.opts.AdminKeyHash = string(hash)

	rec, out := env.do(t, httptest.NewRequest(http.MethodPost, "/referral/check", nil))
	if rec.Code != http.StatusUnauthorized || out["error"] != "Authentication required" {
		t.Fatalf("expected 401 without key, got %d %v", rec.Code, out)
	}

	req := httptest.NewRequest(http.MethodPost, "/referral/check", nil)
	req.Header.Set(auth.HeaderAdminKey, "wrong-admin-key-000")
	if rec, _ := env.do(t, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/referral/check", nil)
	req.Header.Set("Authorization", "Bearer opsdash-admin-key-1")
	if rec, out := env.do(t, req); rec.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("expected 200 with key, got %d %v", rec.Code, out)
	}

	if rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/news/all", nil)); rec.Code != http.StatusOK {
		t.Fatalf("read routes stay open, got %d", rec.Code)
	}
}

func TestIngestRunsRecordsRefreshes(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, httptest.NewRequest(http.MethodPost, "/news/refresh", nil))
	env.do(t, httptest.NewRequest(http.MethodPost, "/keywords/update", nil))
	env.do(t, httptest.NewRequest(http.MethodPost, "/ai/rank", nil))

	rec, out := env.do(t, httptest.NewRequest(http.MethodGet, "/ingest/runs", nil))
	if rec.Code != http.StatusOK || out["count"].(float64) != 3 {
		t.Fatalf("unexpected runs response: %d %v", rec.Code, out)
	}
	newest := out["runs"].([]any)[0].(map[string]any)
	if newest["module"] != "airank" || newest["status"] != "completed" || newest["stored"].(float64) != 2 {
		t.Fatalf("unexpected newest run: %v", newest)
	}

	_, out = env.do(t, httptest.NewRequest(http.MethodGet, "/ingest/runs?module=news", nil))
	runs := out["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["demo"] != true {
		t.Fatalf("unexpected news runs: %v", runs)
	}

	rec, out = env.do(t, httptest.NewRequest(http.MethodGet, "/ingest/runs?module=union", nil))
	if rec.Code != http.StatusBadRequest || out["success"] != false {
		t.Fatalf("unexpected unknown module response: %d %v", rec.Code, out)
	}
	rec, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/ingest/runs?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", rec.Code)
	}
}
