// Package domain defines the scheduling domain model for the club core:
// calendar dates, the static batch catalog, and the session lifecycle.
package domain

import "time"

// Document-store collection names.
const (
	CollectionSessions = "sessions"
	CollectionAuditLog = "audit_log"
)

// SessionStatus represents the lifecycle state of a class session.
type SessionStatus string

const (
	StatusScheduled   SessionStatus = "scheduled"
	StatusCompleted   SessionStatus = "completed"
	StatusCancelled   SessionStatus = "cancelled"
	StatusRescheduled SessionStatus = "rescheduled"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	StatusScheduled:   {StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusRescheduled: {StatusScheduled, StatusCancelled},
}

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// CanTransition reports whether a session may move from s to next.
// Completed and cancelled are terminal.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Session is the class-session document stored per (date, batch). ID and the
// created/updated timestamps are assigned by the store and carried on the
// enclosing document rather than in the JSON payload.
type Session struct {
	ID                 string        `json:"-"`
	Date               Date          `json:"date"`
	Batch              BatchID       `json:"batch"`
	Time               string        `json:"time"`
	Status             SessionStatus `json:"status"`
	Capacity           int           `json:"capacity"`
	Notes              string        `json:"notes,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	ScheduledBy        string        `json:"scheduledBy,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time     `json:"-"`
	UpdatedAt          time.Time     `json:"-"`
}

// NewScheduledSession builds the document for a freshly scheduled session,
// taking the start time and capacity from the batch configuration.
func NewScheduledSession(date Date, batch BatchConfig, notes, scheduledBy string) Session {
	return Session{
		Date:        date,
		Batch:       batch.ID,
		Time:        batch.StartTime,
		Status:      StatusScheduled,
		Capacity:    batch.Capacity,
		Notes:       notes,
		ScheduledBy: scheduledBy,
	}
}
