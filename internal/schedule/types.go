package schedule

import (
	"context"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Store is the slice of the document store the scheduling core mutates and
// queries. Change streams are the realtime package's concern.
type Store interface {
	Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error)
	Create(ctx context.Context, collection string, v any) (store.Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (store.Document, error)
}

// WorkItem is one (date, batch) unit of a bulk operation. Items exist only
// for the duration of a single call; the batch config rides along so the
// coordinator can default time and capacity without a second lookup.
type WorkItem struct {
	Date  domain.Date
	Batch domain.BatchConfig
}

// ItemFailure records one work item that could not be mutated.
type ItemFailure struct {
	Date  domain.Date             `json:"date"`
	Batch domain.BatchID          `json:"batch"`
	Err   *faults.ClassifiedError `json:"error"`
}

// BulkResult is the aggregate outcome of one bulk call. Sessions holds the
// resulting mutations in work-item order.
type BulkResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Sessions  []domain.Session `json:"sessions"`
	Failures  []ItemFailure    `json:"failures,omitempty"`
}

// Conflict is an existing scheduled session occupying a requested slot.
type Conflict struct {
	Date     domain.Date    `json:"date"`
	Batch    domain.BatchID `json:"batch"`
	Existing domain.Session `json:"existing"`
}

// ConflictReport is the advisory result of a conflict check.
type ConflictReport struct {
	HasConflicts bool       `json:"hasConflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// ScheduleRequest describes a bulk schedule call.
type ScheduleRequest struct {
	StartDate        domain.Date
	EndDate          domain.Date
	ExcludedWeekdays []time.Weekday
	Batches          []domain.BatchID
	Notes            string
	SkipConflicts    bool
	ScheduledBy      string
}

// CancelRequest describes a bulk cancel call.
type CancelRequest struct {
	StartDate        domain.Date
	EndDate          domain.Date
	ExcludedWeekdays []time.Weekday
	Batches          []domain.BatchID
	Reason           string
	CancelledBy      string
}

// ConflictCheckRequest describes a standalone conflict check.
type ConflictCheckRequest struct {
	StartDate        domain.Date
	EndDate          domain.Date
	ExcludedWeekdays []time.Weekday
	Batches          []domain.BatchID
}

// ListRequest describes a session listing. Batch and Status are optional
// filters.
type ListRequest struct {
	StartDate domain.Date
	EndDate   domain.Date
	Batch     domain.BatchID
	Status    domain.SessionStatus
}

// SessionPage is the result of a listing.
type SessionPage struct {
	Sessions []domain.Session `json:"sessions"`
	Total    int              `json:"total"`
}

// Period selects the statistics window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// StatsReport aggregates sessions over one period. It is derived purely from
// a listing, not a separate query path.
type StatsReport struct {
	Period   Period                       `json:"period"`
	Start    domain.Date                  `json:"start"`
	End      domain.Date                  `json:"end"`
	Total    int                          `json:"total"`
	ByStatus map[domain.SessionStatus]int `json:"byStatus"`
	ByBatch  map[domain.BatchID]int       `json:"byBatch"`
	Upcoming int                          `json:"upcoming"`
}
