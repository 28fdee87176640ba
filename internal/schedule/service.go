// Package schedule implements the scheduling core: date-range expansion and
// validation, advisory conflict detection, bulk session mutation with
// per-item failure isolation, and the facade composing them. Facade
// operations never panic and never return a raw error; every failure crossing
// the boundary is a classified one.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/audit"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/retry"
	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Service is the public scheduling surface.
type Service struct {
	store      Store
	classifier *faults.Classifier
	retrier    *retry.Retrier
	detector   *Detector
	coord      *Coordinator
	log        *slog.Logger
	now        func() time.Time
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithClock overrides the time source used for validation and statistics
// windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the scheduling service and its internal collaborators. The
// classifier and logger fall back to working defaults when nil; the store and
// retrier are required.
func New(st Store, classifier *faults.Classifier, retrier *retry.Retrier, recorder audit.Recorder, log *slog.Logger, opts ...Option) *Service {
	if classifier == nil {
		classifier = faults.NewClassifier(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:      st,
		classifier: classifier,
		retrier:    retrier,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = NewDetector(st, retrier)
	s.coord = NewCoordinator(st, retrier, classifier, recorder, log, s.now)
	return s
}

// ScheduleSessions expands the requested range into work items, consults the
// conflict detector, and creates one scheduled session per remaining item.
// With SkipConflicts unset any detected conflict fails the whole call before
// a single create is attempted; with it set the conflicting slots are dropped
// and the rest proceed.
func (s *Service) ScheduleSessions(ctx context.Context, req ScheduleRequest) (result BulkResult, err error) {
	defer s.guard("scheduleSessions", &err)

	verr := faults.NewValidationError()
	if req.ScheduledBy == "" {
		verr.Add("scheduledBy", "the scheduling user is required")
	}
	p := buildPlan(verr, s.now(), req.StartDate, req.EndDate, req.ExcludedWeekdays, req.Batches)
	if !verr.Empty() {
		return BulkResult{}, s.classifier.Classify(verr, "scheduleSessions", nil)
	}

	items := p.items
	report, cerr := s.detector.Check(ctx, items)
	if cerr != nil {
		return BulkResult{}, s.classifier.Classify(cerr, "scheduleSessions", nil)
	}
	if report.HasConflicts {
		if !req.SkipConflicts {
			detail := fmt.Sprintf("%d of %d slots already hold a scheduled session", len(report.Conflicts), len(items))
			return BulkResult{}, s.classifier.Classify(
				faults.Coded(faults.CodeSessionConflict, detail),
				"scheduleSessions",
				map[string]any{"conflicts": report.Conflicts},
			)
		}
		items = withoutConflicts(items, report)
	}

	result, cerr = s.coord.Schedule(ctx, items, req.Notes, req.ScheduledBy)
	if cerr != nil {
		return BulkResult{}, s.classifier.Classify(cerr, "scheduleSessions", nil)
	}
	if result.Succeeded == 0 && result.Failed > 0 {
		return BulkResult{}, result.Failures[0].Err
	}
	return result, nil
}

// CancelSessions cancels every scheduled session in the requested range.
// A range with nothing to cancel succeeds with zero cancellations.
func (s *Service) CancelSessions(ctx context.Context, req CancelRequest) (result BulkResult, err error) {
	defer s.guard("cancelSessions", &err)

	verr := faults.NewValidationError()
	if req.CancelledBy == "" {
		verr.Add("cancelledBy", "the cancelling user is required")
	}
	p := buildPlan(verr, s.now(), req.StartDate, req.EndDate, req.ExcludedWeekdays, req.Batches)
	if !verr.Empty() {
		return BulkResult{}, s.classifier.Classify(verr, "cancelSessions", nil)
	}

	result, cerr := s.coord.Cancel(ctx, p.items, req.Reason, req.CancelledBy)
	if cerr != nil {
		return BulkResult{}, s.classifier.Classify(cerr, "cancelSessions", nil)
	}
	if result.Succeeded == 0 && result.Failed > 0 {
		return BulkResult{}, result.Failures[0].Err
	}
	return result, nil
}

// CheckConflicts reports which slots in the requested range already hold a
// scheduled session. The check is advisory: nothing is locked between a check
// and a later schedule call.
func (s *Service) CheckConflicts(ctx context.Context, req ConflictCheckRequest) (report ConflictReport, err error) {
	defer s.guard("checkConflicts", &err)

	verr := faults.NewValidationError()
	p := buildPlan(verr, s.now(), req.StartDate, req.EndDate, req.ExcludedWeekdays, req.Batches)
	if !verr.Empty() {
		return ConflictReport{}, s.classifier.Classify(verr, "checkConflicts", nil)
	}

	report, cerr := s.detector.Check(ctx, p.items)
	if cerr != nil {
		return ConflictReport{}, s.classifier.Classify(cerr, "checkConflicts", nil)
	}
	return report, nil
}

// ListSessions returns the sessions in a date range, optionally narrowed by
// batch and status, ordered by date then start time. Listing is a plain read:
// transient failures surface to the caller instead of being retried here.
func (s *Service) ListSessions(ctx context.Context, req ListRequest) (page SessionPage, err error) {
	defer s.guard("listSessions", &err)

	verr := faults.NewValidationError()
	if req.StartDate.IsZero() {
		verr.Add("startDate", "a start date is required")
	}
	if req.EndDate.IsZero() {
		verr.Add("endDate", "an end date is required")
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.EndDate.Before(req.StartDate) {
		verr.Add("dateRange", "the end date precedes the start date")
	}
	if req.Batch != "" {
		if _, ok := domain.BatchByID(req.Batch); !ok {
			verr.Add("batch", fmt.Sprintf("unknown batch %q", req.Batch))
		}
	}
	if req.Status != "" && !req.Status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", req.Status))
	}
	if !verr.Empty() {
		return SessionPage{}, s.classifier.Classify(verr, "listSessions", nil)
	}

	sessions, cerr := s.listRange(ctx, req)
	if cerr != nil {
		return SessionPage{}, s.classifier.Classify(cerr, "listSessions", nil)
	}
	return SessionPage{Sessions: sessions, Total: len(sessions)}, nil
}

// GetStatistics aggregates the sessions of the current day, week or month. It
// is a pure aggregation over the listing path, not a separate query.
func (s *Service) GetStatistics(ctx context.Context, period Period) (report StatsReport, err error) {
	defer s.guard("getStatistics", &err)

	start, end, ok := periodWindow(s.now(), period)
	if !ok {
		verr := faults.NewValidationError()
		verr.Add("period", fmt.Sprintf("unknown period %q", period))
		return StatsReport{}, s.classifier.Classify(verr, "getStatistics", nil)
	}

	sessions, cerr := s.listRange(ctx, ListRequest{StartDate: start, EndDate: end})
	if cerr != nil {
		return StatsReport{}, s.classifier.Classify(cerr, "getStatistics", nil)
	}
	return aggregate(period, start, end, sessions, domain.DateOf(s.now())), nil
}

func (s *Service) listRange(ctx context.Context, req ListRequest) ([]domain.Session, error) {
	q := store.Query{
		Filters: []store.Filter{
			store.AtLeast("date", req.StartDate.String()),
			store.AtMost("date", req.EndDate.String()),
		},
		OrderBy: []string{"date", "time"},
	}
	if req.Batch != "" {
		q.Filters = append(q.Filters, store.Where("batch", string(req.Batch)))
	}
	if req.Status != "" {
		q.Filters = append(q.Filters, store.Where("status", string(req.Status)))
	}

	docs, err := s.store.Query(ctx, domain.CollectionSessions, q)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(docs))
	for _, doc := range docs {
		session, err := sessionFromDocument(doc)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// guard converts a panic into a classified internal failure so no operation
// ever throws past the facade.
func (s *Service) guard(operation string, err *error) {
	if r := recover(); r != nil {
		s.log.Error("panic recovered", slog.String("operation", operation), slog.Any("panic", r))
		*err = s.classifier.Classify(faults.Coded(faults.CodeInternalError, fmt.Sprintf("panic: %v", r)), operation, nil)
	}
}

type slotKey struct {
	date  domain.Date
	batch domain.BatchID
}

func withoutConflicts(items []WorkItem, report ConflictReport) []WorkItem {
	taken := make(map[slotKey]bool, len(report.Conflicts))
	for _, c := range report.Conflicts {
		taken[slotKey{c.Date, c.Batch}] = true
	}
	kept := make([]WorkItem, 0, len(items))
	for _, item := range items {
		if !taken[slotKey{item.Date, item.Batch.ID}] {
			kept = append(kept, item)
		}
	}
	return kept
}
