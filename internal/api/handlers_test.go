package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/audit"
	"github.com/Chirag4452/sportsclub-core/internal/auth"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/realtime"
	"github.com/Chirag4452/sportsclub-core/internal/retry"
	"github.com/Chirag4452/sportsclub-core/internal/schedule"
	"github.com/Chirag4452/sportsclub-core/internal/store/memory"
)

var handlerNow = time.Date(2024, time.December, 10, 12, 0, 0, 0, time.UTC)

func TestScheduleSessionsEndpoint(t *testing.T) {
	st := newSessionStore()
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/schedule", `{
		"startDate": "2024-12-16",
		"endDate": "2024-12-20",
		"batches": ["morning-batch"],
		"notes": "holiday block"
	}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("expected success envelope: %s", rr.Body.String())
	}
	if env.Message != "Scheduled 5 sessions" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	var result BulkResultView
	mustDecode(t, env.Data, &result)
	if result.Succeeded != 5 || result.Failed != 0 {
		t.Fatalf("unexpected counts %d/%d", result.Succeeded, result.Failed)
	}
	for _, s := range result.Sessions {
		if s.ID == "" {
			t.Fatalf("session missing id: %+v", s)
		}
		if s.ScheduledBy != "admin-raj" {
			t.Fatalf("expected actor from token subject, got %q", s.ScheduledBy)
		}
	}
}

func TestScheduleSessionsRejectsMalformedDate(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/schedule", `{
		"startDate": "16/12/2024",
		"endDate": "2024-12-20",
		"batches": ["morning-batch"]
	}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.Error == nil {
		t.Fatalf("expected failure envelope: %s", rr.Body.String())
	}
	if env.Error.Code != faults.CodeValidationFailed {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
	fields, ok := env.Error.Context["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected field map in error context, got %v", env.Error.Context)
	}
	if _, ok := fields["startDate"]; !ok {
		t.Fatalf("expected startDate problem, got %v", fields)
	}
}

func TestScheduleSessionsConflictStatus(t *testing.T) {
	st := newSessionStore()
	seedScheduled(t, st, "2024-12-17", domain.BatchMorning)
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/schedule", `{
		"startDate": "2024-12-16",
		"endDate": "2024-12-20",
		"batches": ["morning-batch"]
	}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Error == nil || env.Error.Code != faults.CodeSessionConflict {
		t.Fatalf("unexpected error: %s", rr.Body.String())
	}
}

func TestCancelSessionsEndpoint(t *testing.T) {
	st := newSessionStore()
	seedScheduled(t, st, "2024-12-16", domain.BatchMorning)
	seedScheduled(t, st, "2024-12-17", domain.BatchMorning)
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/cancel", `{
		"startDate": "2024-12-16",
		"endDate": "2024-12-20",
		"batches": ["morning-batch"],
		"reason": "coach unavailable"
	}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Message != "Cancelled 2 sessions" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	var result BulkResultView
	mustDecode(t, env.Data, &result)
	if result.Succeeded != 2 {
		t.Fatalf("expected 2 cancellations got %d", result.Succeeded)
	}
	for _, s := range result.Sessions {
		if s.Status != domain.StatusCancelled || s.CancelledBy != "admin-raj" {
			t.Fatalf("unexpected cancelled session %+v", s)
		}
	}
}

func TestCheckConflictsEndpoint(t *testing.T) {
	st := newSessionStore()
	seeded := seedScheduled(t, st, "2024-12-18", domain.BatchEvening)
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/conflicts", `{
		"startDate": "2024-12-16",
		"endDate": "2024-12-20",
		"batches": ["evening-batch"]
	}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)

	var report ConflictReportView
	mustDecode(t, env.Data, &report)
	if !report.HasConflicts || len(report.Conflicts) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Conflicts[0].Existing.ID != seeded {
		t.Fatalf("expected existing session %s, got %s", seeded, report.Conflicts[0].Existing.ID)
	}
	if env.Message != "1 conflicting slots found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	st := newSessionStore()
	seedScheduled(t, st, "2024-12-16", domain.BatchMorning)
	seedScheduled(t, st, "2024-12-16", domain.BatchEvening)
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodGet,
		"/v1/sessions?startDate=2024-12-16&endDate=2024-12-20&batch=morning-batch", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)

	var page SessionPageView
	mustDecode(t, env.Data, &page)
	if page.Total != 1 || len(page.Sessions) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Sessions[0].Batch != domain.BatchMorning {
		t.Fatalf("unexpected batch %s", page.Sessions[0].Batch)
	}
}

func TestListSessionsRejectsMalformedDate(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodGet, "/v1/sessions?startDate=soon&endDate=2024-12-20", ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	st := newSessionStore()
	seedScheduled(t, st, "2024-12-10", domain.BatchMorning)
	mux := newTestMux(st)

	rr := serve(mux, authedRequest(http.MethodGet, "/v1/statistics?period=week", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)

	var report schedule.StatsReport
	mustDecode(t, env.Data, &report)
	if report.Period != schedule.PeriodWeek || report.Total != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStatisticsRejectsUnknownPeriod(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodGet, "/v1/statistics?period=quarter", ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRealtimeStatusEndpoint(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodGet, "/v1/realtime/status", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)

	var status realtime.Status
	mustDecode(t, env.Data, &status)
	if len(status.ActiveCollections) != 1 || status.ActiveCollections[0] != "sessions" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodGet, "/v1/sessions/schedule", ""))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.Error == nil {
		t.Fatalf("expected failure envelope: %s", rr.Body.String())
	}
}

func TestRejectsUnparseableBody(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, authedRequest(http.MethodPost, "/v1/sessions/schedule", `{"startDate": `))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Error == nil || env.Error.Code != faults.CodeInvalidArgument {
		t.Fatalf("unexpected error: %s", rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(newSessionStore())

	rr := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestAuthErrorWriterEmitsEnvelope(t *testing.T) {
	handler := newTestHandler(newSessionStore())
	rr := httptest.NewRecorder()

	handler.AuthErrorWriter()(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil), auth.ErrMissingToken)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Error == nil || env.Error.Code != faults.CodeUnauthenticated {
		t.Fatalf("unexpected error: %s", rr.Body.String())
	}
}

type envelope struct {
	Success bool                    `json:"success"`
	Data    json.RawMessage         `json:"data"`
	Error   *faults.ClassifiedError `json:"error"`
	Message string                  `json:"message"`
}

func newTestHandler(st *memory.Store) *Handler {
	log := slog.New(slog.DiscardHandler)
	classifier := faults.NewClassifier(log)
	retrier := retry.New(classifier, retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
	service := schedule.New(st, classifier, retrier, audit.NewLogger(st, log), log,
		schedule.WithClock(func() time.Time { return handlerNow }))
	return NewHandler(service, statusStub{}, classifier)
}

func newTestMux(st *memory.Store) *http.ServeMux {
	mux := http.NewServeMux()
	newTestHandler(st).RegisterRoutes(mux)
	return mux
}

func newSessionStore() *memory.Store {
	return memory.New(memory.WithUniqueIndex(memory.UniqueIndex{
		Collection: domain.CollectionSessions,
		Fields:     []string{"date", "batch"},
		Where:      map[string]string{"status": string(domain.StatusScheduled)},
	}))
}

func seedScheduled(t *testing.T, st *memory.Store, date string, batch domain.BatchID) string {
	t.Helper()
	day, err := domain.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	cfg, ok := domain.BatchByID(batch)
	if !ok {
		t.Fatalf("unknown batch %s", batch)
	}
	doc, err := st.Create(context.Background(), domain.CollectionSessions,
		domain.NewScheduledSession(day, cfg, "", "seed"))
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return doc.ID
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	claims := &auth.Claims{Subject: "admin-raj", ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	return env
}

func mustDecode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

type statusStub struct{}

func (statusStub) Status() realtime.Status {
	return realtime.Status{ActiveCollections: []string{"sessions"}, SubscriptionCount: 1}
}
