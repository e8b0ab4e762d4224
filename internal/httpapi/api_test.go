package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"jobboard-engine/internal/config"
	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/identity"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/rank"
	"jobboard-engine/internal/store"
	"jobboard-engine/internal/taxonomy"
)

type apiFixture struct {
	srv *httptest.Server
	db  *store.DB
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hub := events.NewHub()
	tree := taxonomy.NewTree()
	view := index.NewView()
	ldg := ledger.New(db.Pool, view, hub)

	cfg := config.Default()
	var cfgVal atomic.Value
	cfgVal.Store(cfg)
	engine := rank.NewEngine(tree, view, nil, func() config.Config {
		return cfgVal.Load().(config.Config)
	})

	var sweepStatus atomic.Value
	sweepStatus.Store(SweepStatus{})

	mux := NewMux(Deps{
		DB:          db.Pool,
		Hub:         hub,
		Tree:        tree,
		View:        view,
		Ledger:      ldg,
		Engine:      engine,
		Identity:    identity.ContextProvider{},
		CfgVal:      &cfgVal,
		SweepStatus: &sweepStatus,
		RunSweep: func() (int, error) {
			return ldg.Sweep(context.Background())
		},
	})
	handler := Chain(mux, RequestID, Recover, Identity)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, db: db}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (f *apiFixture) seedTree(t *testing.T) {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/categories", map[string]any{
		"name": "IT", "slug": "it",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create root: %d %s", resp.StatusCode, body)
	}
	var root domain.Category
	if err := json.Unmarshal(body, &root); err != nil {
		t.Fatal(err)
	}
	resp, body = f.do(t, http.MethodPost, "/categories", map[string]any{
		"name": "Backend", "slug": "backend", "parentId": root.ID,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create leaf: %d %s", resp.StatusCode, body)
	}
}

func (f *apiFixture) publishJob(t *testing.T, title string) int64 {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/jobs", map[string]any{
		"categoryId":      int64(2),
		"provinceCode":    "HN",
		"employmentType":  "FULL_TIME",
		"positionType":    "STAFF",
		"experienceLevel": "1_2Y",
		"salaryMin":       15,
		"salaryMax":       25,
		"title":           title,
		"description":     "<p>Go services</p>",
		"expiresAt":       time.Now().UTC().AddDate(0, 1, 0).Format(time.RFC3339),
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: %d %s", resp.StatusCode, body)
	}
	var out struct {
		ID int64 `json:"ID"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	return out.ID
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e APIError
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("not an APIError: %s", body)
	}
	return e.Error.Code
}

func TestPublishSearchAndClose(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTree(t)
	id := f.publishJob(t, "Golang Backend Engineer")

	resp, body := f.do(t, http.MethodPost, "/jobs/search", map[string]any{
		"keyword": "golang",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", resp.StatusCode, body)
	}
	var res struct {
		TotalCount int `json:"totalCount"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.TotalCount != 1 {
		t.Fatalf("totalCount = %d, want 1", res.TotalCount)
	}

	resp, body = f.do(t, http.MethodPost, fmt.Sprintf("/jobs/%d/close", id), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/jobs/search", map[string]any{
		"keyword": "golang",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search after close: %d %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.TotalCount != 0 {
		t.Fatalf("closed job still searchable: totalCount = %d", res.TotalCount)
	}
}

func TestPublishRejectsNonLeafCategory(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTree(t)

	resp, body := f.do(t, http.MethodPost, "/jobs", map[string]any{
		"categoryId":      int64(1), // root, not a leaf
		"provinceCode":    "HN",
		"employmentType":  "FULL_TIME",
		"positionType":    "STAFF",
		"experienceLevel": "1_2Y",
		"title":           "Engineer",
		"expiresAt":       time.Now().UTC().AddDate(0, 1, 0).Format(time.RFC3339),
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "category_not_assignable" {
		t.Fatalf("code = %q", code)
	}
}

func TestSearchRejectsInvalidSortBy(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodPost, "/jobs/search", map[string]any{
		"sortBy": "SIDEWAYS",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "invalid_search_parameter" {
		t.Fatalf("code = %q", code)
	}
}

func TestApplyRequiresIdentity(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/promotions/apply", map[string]any{
		"unitId": "boost-30", "jobId": int64(1),
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPromotionFlowThroughAPI(t *testing.T) {
	f := newAPIFixture(t)
	f.seedTree(t)
	id := f.publishJob(t, "Golang Backend Engineer")

	resp, body := f.do(t, http.MethodPost, "/promotions/units", map[string]any{
		"id": "boost-30", "action": "BOOST_SCORE_JOB", "target": "JOB_POST",
		"dayDuration": 30, "value": 20,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert unit: %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/promotions/grant", map[string]any{
		"userId": "user-1", "unitId": "boost-30",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("grant: %d %s", resp.StatusCode, body)
	}

	asUser := map[string]string{"X-User-ID": "user-1"}
	resp, body = f.do(t, http.MethodPost, "/promotions/apply", map[string]any{
		"unitId": "boost-30", "jobId": id,
	}, asUser)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("apply: %d %s", resp.StatusCode, body)
	}

	// the boosted job's total score reflects the applied effect
	resp, body = f.do(t, http.MethodPost, "/jobs/search", map[string]any{
		"keyword": "golang",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", resp.StatusCode, body)
	}
	var res struct {
		Items []struct {
			TotalScore float64 `json:"totalScore"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].TotalScore <= 20 {
		t.Fatalf("boost not reflected in search: %s", body)
	}

	// a stranger cannot spend someone else's entitlement
	resp, body = f.do(t, http.MethodPost, "/promotions/apply", map[string]any{
		"unitId": "boost-30", "jobId": id,
	}, map[string]string{"X-User-ID": "user-2"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (%s)", resp.StatusCode, body)
	}
	if code := errorCode(t, body); code != "entitlement_not_owned" {
		t.Fatalf("code = %q", code)
	}

	// entitlement listing is scoped to the caller
	resp, body = f.do(t, http.MethodGet, "/entitlements", nil, asUser)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("entitlements: %d %s", resp.StatusCode, body)
	}
	var ents struct {
		Items []domain.UserEntitlement `json:"items"`
	}
	if err := json.Unmarshal(body, &ents); err != nil {
		t.Fatal(err)
	}
	if len(ents.Items) != 1 || ents.Items[0].UserID != "user-1" {
		t.Fatalf("unexpected entitlements: %s", body)
	}
}
