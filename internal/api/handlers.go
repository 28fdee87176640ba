// Package api exposes the HTTP surface of the scheduling core. Every
// operation response is a result envelope; HTTP status codes are derived
// from the classified failure kind.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/auth"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/realtime"
	"github.com/Chirag4452/sportsclub-core/internal/schedule"
)

// StatusSource reports the realtime fan-out state of this process.
type StatusSource interface {
	Status() realtime.Status
}

// Handler coordinates HTTP requests with the scheduling facade.
type Handler struct {
	service    *schedule.Service
	realtime   StatusSource
	classifier *faults.Classifier
}

// NewHandler builds a Handler.
func NewHandler(service *schedule.Service, rt StatusSource, classifier *faults.Classifier) *Handler {
	return &Handler{service: service, realtime: rt, classifier: classifier}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions/schedule", h.scheduleSessions)
	mux.HandleFunc("/v1/sessions/cancel", h.cancelSessions)
	mux.HandleFunc("/v1/sessions/conflicts", h.checkConflicts)
	mux.HandleFunc("/v1/sessions", h.listSessions)
	mux.HandleFunc("/v1/statistics", h.statistics)
	mux.HandleFunc("/v1/realtime/status", h.realtimeStatus)
	mux.HandleFunc("/healthz", healthz)
}

// AuthErrorWriter adapts token failures into the standard failure envelope so
// the auth middleware answers in the same shape as every other endpoint.
func (h *Handler) AuthErrorWriter() auth.ErrorWriter {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		ce := h.classifier.Classify(faults.Coded(faults.CodeUnauthenticated, err.Error()), "authenticate", nil)
		writeFault(w, ce)
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) scheduleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, "scheduleSessions")
		return
	}

	var body scheduleSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badBody(w, "scheduleSessions")
		return
	}

	req, verr := body.parse()
	if verr != nil {
		writeFault(w, h.classifier.Classify(verr, "scheduleSessions", nil))
		return
	}
	req.ScheduledBy = auth.Actor(r.Context())

	result, err := h.service.ScheduleSessions(r.Context(), req)
	if err != nil {
		writeFault(w, h.classified(err, "scheduleSessions"))
		return
	}
	writeEnvelope(w, http.StatusOK, faults.OK(toBulkResultView(result), bulkMessage("Scheduled", result)))
}

func (h *Handler) cancelSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, "cancelSessions")
		return
	}

	var body cancelSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badBody(w, "cancelSessions")
		return
	}

	req, verr := body.parse()
	if verr != nil {
		writeFault(w, h.classifier.Classify(verr, "cancelSessions", nil))
		return
	}
	req.CancelledBy = auth.Actor(r.Context())

	result, err := h.service.CancelSessions(r.Context(), req)
	if err != nil {
		writeFault(w, h.classified(err, "cancelSessions"))
		return
	}
	writeEnvelope(w, http.StatusOK, faults.OK(toBulkResultView(result), bulkMessage("Cancelled", result)))
}

func (h *Handler) checkConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, "checkConflicts")
		return
	}

	var body checkConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.badBody(w, "checkConflicts")
		return
	}

	req, verr := body.parse()
	if verr != nil {
		writeFault(w, h.classifier.Classify(verr, "checkConflicts", nil))
		return
	}

	report, err := h.service.CheckConflicts(r.Context(), req)
	if err != nil {
		writeFault(w, h.classified(err, "checkConflicts"))
		return
	}

	message := "No conflicts found"
	if report.HasConflicts {
		message = fmt.Sprintf("%d conflicting slots found", len(report.Conflicts))
	}
	writeEnvelope(w, http.StatusOK, faults.OK(toConflictReportView(report), message))
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, "listSessions")
		return
	}

	q := r.URL.Query()
	verr := faults.NewValidationError()
	req := schedule.ListRequest{
		StartDate: parseDateField(verr, "startDate", q.Get("startDate")),
		EndDate:   parseDateField(verr, "endDate", q.Get("endDate")),
		Batch:     domain.BatchID(q.Get("batch")),
		Status:    domain.SessionStatus(q.Get("status")),
	}
	if !verr.Empty() {
		writeFault(w, h.classifier.Classify(verr, "listSessions", nil))
		return
	}

	page, err := h.service.ListSessions(r.Context(), req)
	if err != nil {
		writeFault(w, h.classified(err, "listSessions"))
		return
	}
	writeEnvelope(w, http.StatusOK, faults.OK(toSessionPageView(page), ""))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, "getStatistics")
		return
	}

	report, err := h.service.GetStatistics(r.Context(), schedule.Period(r.URL.Query().Get("period")))
	if err != nil {
		writeFault(w, h.classified(err, "getStatistics"))
		return
	}
	writeEnvelope(w, http.StatusOK, faults.OK(report, ""))
}

func (h *Handler) realtimeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, "realtimeStatus")
		return
	}
	writeEnvelope(w, http.StatusOK, faults.OK(h.realtime.Status(), ""))
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, operation string) {
	ce := h.classifier.Classify(faults.Coded(faults.CodeInvalidArgument, "unsupported method"), operation, nil)
	writeEnvelope(w, http.StatusMethodNotAllowed, ce.Envelope())
}

func (h *Handler) badBody(w http.ResponseWriter, operation string) {
	ce := h.classifier.Classify(faults.Coded(faults.CodeInvalidArgument, "unable to parse request body"), operation, nil)
	writeFault(w, ce)
}

// classified unwraps the facade error; anything else is classified here as a
// fallback.
func (h *Handler) classified(err error, operation string) *faults.ClassifiedError {
	var ce *faults.ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return h.classifier.Classify(err, operation, nil)
}

// scheduleSessionsRequest is the payload for POST /v1/sessions/schedule.
// Weekdays are numeric, Sunday = 0. The acting user comes from the token
// subject, never from the body.
type scheduleSessionsRequest struct {
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	ExcludedWeekdays []int    `json:"excludedWeekdays"`
	Batches          []string `json:"batches"`
	Notes            string   `json:"notes"`
	SkipConflicts    bool     `json:"skipConflicts"`
}

func (r scheduleSessionsRequest) parse() (schedule.ScheduleRequest, *faults.ValidationError) {
	verr := faults.NewValidationError()
	out := schedule.ScheduleRequest{
		StartDate:        parseDateField(verr, "startDate", r.StartDate),
		EndDate:          parseDateField(verr, "endDate", r.EndDate),
		ExcludedWeekdays: toWeekdays(r.ExcludedWeekdays),
		Batches:          toBatchIDs(r.Batches),
		Notes:            r.Notes,
		SkipConflicts:    r.SkipConflicts,
	}
	if !verr.Empty() {
		return schedule.ScheduleRequest{}, verr
	}
	return out, nil
}

// cancelSessionsRequest is the payload for POST /v1/sessions/cancel.
type cancelSessionsRequest struct {
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	ExcludedWeekdays []int    `json:"excludedWeekdays"`
	Batches          []string `json:"batches"`
	Reason           string   `json:"reason"`
}

func (r cancelSessionsRequest) parse() (schedule.CancelRequest, *faults.ValidationError) {
	verr := faults.NewValidationError()
	out := schedule.CancelRequest{
		StartDate:        parseDateField(verr, "startDate", r.StartDate),
		EndDate:          parseDateField(verr, "endDate", r.EndDate),
		ExcludedWeekdays: toWeekdays(r.ExcludedWeekdays),
		Batches:          toBatchIDs(r.Batches),
		Reason:           r.Reason,
	}
	if !verr.Empty() {
		return schedule.CancelRequest{}, verr
	}
	return out, nil
}

// checkConflictsRequest is the payload for POST /v1/sessions/conflicts.
type checkConflictsRequest struct {
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	ExcludedWeekdays []int    `json:"excludedWeekdays"`
	Batches          []string `json:"batches"`
}

func (r checkConflictsRequest) parse() (schedule.ConflictCheckRequest, *faults.ValidationError) {
	verr := faults.NewValidationError()
	out := schedule.ConflictCheckRequest{
		StartDate:        parseDateField(verr, "startDate", r.StartDate),
		EndDate:          parseDateField(verr, "endDate", r.EndDate),
		ExcludedWeekdays: toWeekdays(r.ExcludedWeekdays),
		Batches:          toBatchIDs(r.Batches),
	}
	if !verr.Empty() {
		return schedule.ConflictCheckRequest{}, verr
	}
	return out, nil
}

// SessionView exposes a session with its store-assigned identity and
// timestamps, which the domain document deliberately omits.
type SessionView struct {
	ID                 string               `json:"id"`
	Date               domain.Date          `json:"date"`
	Batch              domain.BatchID       `json:"batch"`
	Time               string               `json:"time"`
	Status             domain.SessionStatus `json:"status"`
	Capacity           int                  `json:"capacity"`
	Notes              string               `json:"notes,omitempty"`
	CancellationReason string               `json:"cancellationReason,omitempty"`
	ScheduledBy        string               `json:"scheduledBy,omitempty"`
	CancelledBy        string               `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// BulkResultView packages the outcome of a bulk mutation.
type BulkResultView struct {
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Sessions  []SessionView          `json:"sessions"`
	Failures  []schedule.ItemFailure `json:"failures,omitempty"`
}

// ConflictView describes one occupied slot.
type ConflictView struct {
	Date     domain.Date    `json:"date"`
	Batch    domain.BatchID `json:"batch"`
	Existing SessionView    `json:"existing"`
}

// ConflictReportView packages a conflict check result.
type ConflictReportView struct {
	HasConflicts bool           `json:"hasConflicts"`
	Conflicts    []ConflictView `json:"conflicts"`
}

// SessionPageView packages list results.
type SessionPageView struct {
	Sessions []SessionView `json:"sessions"`
	Total    int           `json:"total"`
}

func toSessionView(s domain.Session) SessionView {
	return SessionView{
		ID:                 s.ID,
		Date:               s.Date,
		Batch:              s.Batch,
		Time:               s.Time,
		Status:             s.Status,
		Capacity:           s.Capacity,
		Notes:              s.Notes,
		CancellationReason: s.CancellationReason,
		ScheduledBy:        s.ScheduledBy,
		CancelledBy:        s.CancelledBy,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toSessionViews(sessions []domain.Session) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionView(s))
	}
	return out
}

func toBulkResultView(result schedule.BulkResult) BulkResultView {
	return BulkResultView{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Sessions:  toSessionViews(result.Sessions),
		Failures:  result.Failures,
	}
}

func toConflictReportView(report schedule.ConflictReport) ConflictReportView {
	out := ConflictReportView{
		HasConflicts: report.HasConflicts,
		Conflicts:    make([]ConflictView, 0, len(report.Conflicts)),
	}
	for _, c := range report.Conflicts {
		out.Conflicts = append(out.Conflicts, ConflictView{
			Date:     c.Date,
			Batch:    c.Batch,
			Existing: toSessionView(c.Existing),
		})
	}
	return out
}

func toSessionPageView(page schedule.SessionPage) SessionPageView {
	return SessionPageView{Sessions: toSessionViews(page.Sessions), Total: page.Total}
}

func bulkMessage(verb string, result schedule.BulkResult) string {
	if result.Failed > 0 {
		return fmt.Sprintf("%s %d sessions, %d failed", verb, result.Succeeded, result.Failed)
	}
	return fmt.Sprintf("%s %d sessions", verb, result.Succeeded)
}

func parseDateField(verr *faults.ValidationError, field, raw string) domain.Date {
	if strings.TrimSpace(raw) == "" {
		return domain.Date{}
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		verr.Add(field, "must be a YYYY-MM-DD date")
		return domain.Date{}
	}
	return d
}

func toWeekdays(raw []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(raw))
	for _, day := range raw {
		out = append(out, time.Weekday(day))
	}
	return out
}

func toBatchIDs(raw []string) []domain.BatchID {
	out := make([]domain.BatchID, 0, len(raw))
	for _, id := range raw {
		out = append(out, domain.BatchID(id))
	}
	return out
}

func writeFault(w http.ResponseWriter, ce *faults.ClassifiedError) {
	writeEnvelope(w, statusFor(ce), ce.Envelope())
}

func writeEnvelope(w http.ResponseWriter, status int, env faults.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func statusFor(ce *faults.ClassifiedError) int {
	switch ce.Kind {
	case faults.KindValidation:
		return http.StatusBadRequest
	case faults.KindAuthentication:
		return http.StatusUnauthorized
	case faults.KindPermission:
		return http.StatusForbidden
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindConflict:
		return http.StatusConflict
	case faults.KindRateLimit:
		return http.StatusTooManyRequests
	case faults.KindTimeout:
		return http.StatusGatewayTimeout
	case faults.KindNetwork:
		return http.StatusBadGateway
	case faults.KindServer:
		if ce.Code == faults.CodeServiceUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
