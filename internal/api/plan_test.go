package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/logbuffer"
	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/scheduling"
	"github.com/friendsincode/skuld/internal/storage"
)

var apiBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// twoTaskBody is the standard fixture: with level importance pressure the
// dentist call (more important) lands first, dinner second.
func twoTaskBody() string {
	return `{
		"start": "2026-03-14T09:00:00Z",
		"strategy": "importance",
		"tasks": [
			{"id": 1, "content": "cook dinner", "deadline": "2026-03-14T11:00:00Z", "duration": "1h", "importance": 3},
			{"id": 2, "content": "book dentist appointment", "deadline": "2026-03-21T09:00:00Z", "duration": "10m", "importance": 5}
		]
	}`
}

func postPlan(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlePlanCompute(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	rr := postPlan(t, router, "/api/v1/plan", twoTaskBody())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var plan schedule.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.RunID) != 8 {
		t.Fatalf("expected 8-char run id, got %q", plan.RunID)
	}
	if plan.Strategy != "importance" {
		t.Fatalf("expected importance strategy, got %q", plan.Strategy)
	}
	if len(plan.Schedule) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d", len(plan.Schedule))
	}
	if plan.Schedule[0].Task.ID != 2 || !plan.Schedule[0].When.Equal(apiBase.Add(time.Minute)) {
		t.Fatalf("first slot = task %d at %s, want task 2 at %s",
			plan.Schedule[0].Task.ID, plan.Schedule[0].When, apiBase.Add(time.Minute))
	}
	if plan.Schedule[1].Task.ID != 1 || !plan.Schedule[1].When.Equal(apiBase.Add(11*time.Minute)) {
		t.Fatalf("second slot = task %d at %s, want task 1 at %s",
			plan.Schedule[1].Task.ID, plan.Schedule[1].When, apiBase.Add(11*time.Minute))
	}
}

func TestHandlePlanComputeMalformedJSON(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	rr := postPlan(t, router, "/api/v1/plan", `{"tasks": [`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "malformed_json") {
		t.Fatalf("expected malformed_json error, got %s", rr.Body.String())
	}
}

func TestHandlePlanComputeBadDuration(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	body := `{"tasks": [{"id": 1, "content": "x", "deadline": "2026-03-14T11:00:00Z", "duration": "ninety minutes", "importance": 1}]}`
	rr := postPlan(t, router, "/api/v1/plan", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "bad_duration") {
		t.Fatalf("expected bad_duration error, got %s", rr.Body.String())
	}
}

func TestHandlePlanComputeUnknownStrategy(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	body := `{"strategy": "alphabetical", "tasks": [{"id": 1, "content": "x", "deadline": "2026-03-14T11:00:00Z", "duration": "10m", "importance": 1}]}`
	rr := postPlan(t, router, "/api/v1/plan", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "invalid_request") {
		t.Fatalf("expected invalid_request error, got %s", rr.Body.String())
	}
}

func TestHandlePlanComputeDeadlineMissed(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	body := `{
		"start": "2026-03-14T09:00:00Z",
		"tasks": [{"id": 7, "content": "file expense report", "deadline": "2026-03-14T09:00:00Z", "duration": "10m", "importance": 1}]
	}`
	rr := postPlan(t, router, "/api/v1/plan", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Error         string `json:"error"`
		TaskID        int64  `json:"task_id"`
		AlreadyMissed bool   `json:"already_missed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "deadline_missed" || resp.TaskID != 7 || !resp.AlreadyMissed {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestHandlePlanComputeTooManyTasks(t *testing.T) {
	bus := memBus(t)
	svc := scheduling.New(scheduling.Config{MaxTasks: 1, TightDeadlineWindow: time.Hour}, bus, nil, nil, zerolog.Nop())
	a := New(svc, bus, nil, nil, logbuffer.New(16), nil, "test", "memory", 0, zerolog.Nop())
	router := chi.NewRouter()
	a.Routes(router)

	rr := postPlan(t, router, "/api/v1/plan", twoTaskBody())
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "too_many_tasks") {
		t.Fatalf("expected too_many_tasks error, got %s", rr.Body.String())
	}
}

func TestHandlePlanComputeRateLimited(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 1)

	first := postPlan(t, router, "/api/v1/plan", twoTaskBody())
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d body=%s", first.Code, first.Body.String())
	}

	second := postPlan(t, router, "/api/v1/plan", twoTaskBody())
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After header, got %q", got)
	}
}

func TestHandlePlanExportICS(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	body := `{
		"start": "2026-03-14T09:00:00Z",
		"format": "ics",
		"tasks": [{"id": 1, "content": "cook dinner", "deadline": "2026-03-14T11:00:00Z", "duration": "1h", "importance": 3}]
	}`
	rr := postPlan(t, router, "/api/v1/plan/export", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("expected text/calendar content type, got %q", ct)
	}
	if runID := rr.Header().Get("X-Run-ID"); len(runID) != 8 {
		t.Fatalf("expected run id header, got %q", runID)
	}
	out := rr.Body.String()
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") {
		t.Fatalf("expected VCALENDAR output with CRLF lines, got %q", out[:40])
	}
	if !strings.Contains(out, "SUMMARY:cook dinner") {
		t.Fatalf("expected task summary in ICS output:\n%s", out)
	}
}

func TestHandlePlanExportInvalidFormat(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	body := `{"format": "pdf", "tasks": [{"id": 1, "content": "x", "deadline": "2026-03-14T11:00:00Z", "duration": "10m", "importance": 1}]}`
	rr := postPlan(t, router, "/api/v1/plan/export", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_format") {
		t.Fatalf("expected invalid_format error, got %s", rr.Body.String())
	}
}

func TestHandlePlanExportStores(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFSStore(storage.FSConfig{RootDir: dir}, zerolog.Nop())

	bus := memBus(t)
	svc := scheduling.New(scheduling.DefaultConfig(), bus, nil, store, zerolog.Nop())
	a := New(svc, bus, nil, store, logbuffer.New(16), nil, "test", "memory", 0, zerolog.Nop())
	router := chi.NewRouter()
	a.Routes(router)

	body := `{
		"start": "2026-03-14T09:00:00Z",
		"format": "json",
		"store": true,
		"tasks": [{"id": 1, "content": "cook dinner", "deadline": "2026-03-14T11:00:00Z", "duration": "1h", "importance": 3}]
	}`
	rr := postPlan(t, router, "/api/v1/plan/export", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	key := rr.Header().Get("X-Storage-Key")
	if !strings.HasPrefix(key, "plans/") {
		t.Fatalf("expected storage key header, got %q", key)
	}
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read stored export: %v", err)
	}
	if string(stored) != rr.Body.String() {
		t.Fatalf("stored bytes differ from response body")
	}
}

func TestHandlePlanLatestWithoutCache(t *testing.T) {
	router := testRouter(t, nil, memBus(t), logbuffer.New(16), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/latest", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/plan/runs", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":0`) {
		t.Fatalf("expected empty run list, got %d %s", rr.Code, rr.Body.String())
	}
}
