package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/casenote/casenote/internal/config"
	"github.com/casenote/casenote/internal/domain/casenote"
)

// ---------------------------------------------------------------------------
// server wiring
// ---------------------------------------------------------------------------

type stubRepo struct{}

func (stubRepo) GetByID(_ context.Context, id int64) (*casenote.Request, error) {
	if id != 1 {
		return nil, casenote.ErrNotFound
	}
	pic := int64(1)
	return &casenote.Request{ID: 1, Kind: casenote.KindStandard, Status: casenote.StatusApproved,
		RequestedByUserID: 1, CurrentPICUserID: &pic, IsReceived: true}, nil
}

func (stubRepo) Timeline(context.Context, int64) ([]casenote.TimelineEvent, error) {
	return nil, nil
}

func (stubRepo) ListInvolving(context.Context, int64) ([]*casenote.Request, error) {
	return nil, nil
}

func (stubRepo) ListIndividualByRequester(context.Context, int64) ([]*casenote.Request, error) {
	return nil, nil
}

func (stubRepo) IsInvolved(_ context.Context, id, userID int64) (bool, error) {
	return id == 1 && userID == 1, nil
}

func (stubRepo) ListHeldBy(context.Context, int64) ([]*casenote.Request, error) {
	return nil, nil
}

func (stubRepo) ListForReview(context.Context, casenote.ReviewQuery) ([]*casenote.Request, error) {
	return nil, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func testConfig(authMode string) *config.Config {
	return &config.Config{
		Env:            "test",
		AuthMode:       authMode,
		AuthSigningKey: "test-secret",
		DevUserID:      "1",
		DevUserRole:    "ADMIN",
		Source:         config.SourceREST,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "1M",
		MetricsEnabled: true,
	}
}

func serve(t *testing.T, cfg *config.Config, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := newServer(cfg, zerolog.Nop(), casenote.NewService(stubRepo{}), okPinger{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	for _, path := range []string{"/health", "/health/db"} {
		rec := serve(t, testConfig(config.AuthModeExternal), httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200 without credentials, got %d", path, rec.Code)
		}
	}
}

func TestServer_HealthReportsSource(t *testing.T) {
	rec := serve(t, testConfig(config.AuthModeDevelopment), httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["source"] != config.SourceREST || body["version"] != version {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestServer_Metrics(t *testing.T) {
	cfg := testConfig(config.AuthModeDevelopment)
	e := newServer(cfg, zerolog.Nop(), casenote.NewService(stubRepo{}), nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/case-notes/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for detail, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "casenote_http_requests_total") {
		t.Error("expected HTTP request counter in metrics output")
	}
	if !strings.Contains(rec.Body.String(), "casenote_classified_views_total") {
		t.Error("expected classified view counter in metrics output")
	}
}

func TestServer_NoDBHealthWithoutPinger(t *testing.T) {
	e := newServer(testConfig(config.AuthModeDevelopment), zerolog.Nop(), casenote.NewService(stubRepo{}), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_DevAuth(t *testing.T) {
	cfg := testConfig(config.AuthModeDevelopment)

	rec := serve(t, cfg, httptest.NewRequest(http.MethodGet, "/api/v1/case-notes/involvements", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 as dev admin, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/case-notes/review/requesters", nil)
	req.Header.Set("X-Dev-User-ID", "7")
	req.Header.Set("X-Dev-Role", "CA")
	rec = serve(t, cfg, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for CA on review, got %d", rec.Code)
	}
}

func TestServer_JWTRequired(t *testing.T) {
	rec := serve(t, testConfig(config.AuthModeExternal), httptest.NewRequest(http.MethodGet, "/api/v1/case-notes/mine", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestServer_SecurityHeadersAndRequestID(t *testing.T) {
	rec := serve(t, testConfig(config.AuthModeDevelopment), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff")
	}
}

// ---------------------------------------------------------------------------
// classify command
// ---------------------------------------------------------------------------

const snapshot = `[
	{"id": 1, "request_number": "CNR-001", "status": "completed", "requested_by_user_id": 7,
	 "current_pic_user_id": null, "is_received": true, "is_returned": true,
	 "patient": {"id": 3, "name": "Tan Mei Ling", "mrn": "MRN-1001"}},
	{"id": 2, "request_number": "FR-002", "status": "pending", "requested_by_user_id": 7,
	 "is_individual_request": true}
]`

func TestRunClassify_Table(t *testing.T) {
	var out bytes.Buffer
	err := runClassify(strings.NewReader(snapshot), &out, casenote.Viewer{ID: 7, Role: casenote.RoleCA}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "Returned & Completed") || !strings.Contains(lines[1], "Tan Mei Ling") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "Requested by Me") || !strings.Contains(lines[2], "N/A") {
		t.Errorf("unexpected second row %q", lines[2])
	}
}

func TestRunClassify_JSONWrapped(t *testing.T) {
	var out bytes.Buffer
	in := `{"records": ` + snapshot + `}`
	if err := runClassify(strings.NewReader(in), &out, casenote.Viewer{ID: 7, Role: casenote.RoleCA}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var views []map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &views); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(views) != 2 || views[1]["involvement"] != "Requested by Me" {
		t.Errorf("unexpected views %v", views)
	}
}

func TestRunClassify_Errors(t *testing.T) {
	viewer := casenote.Viewer{ID: 7, Role: casenote.RoleCA}
	for _, in := range []string{`not json`, `[null]`, `{"records": [1]}`} {
		if err := runClassify(strings.NewReader(in), &bytes.Buffer{}, viewer, false); err == nil {
			t.Errorf("expected error for input %q", in)
		}
	}
}
