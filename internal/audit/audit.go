// Package audit records one summarizing entry per bulk mutation in the
// audit_log collection and mirrors it to the process log.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Audit actions recorded by the scheduling core.
const (
	ActionSessionsScheduled = "sessions_scheduled"
	ActionSessionsCancelled = "sessions_cancelled"
)

// Entry is one audit record. The store assigns identity and timestamps.
type Entry struct {
	Action  string         `json:"action"`
	Actor   string         `json:"actor"`
	Details map[string]any `json:"details,omitempty"`
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Writer is the slice of the document store the audit logger needs.
type Writer interface {
	Create(ctx context.Context, collection string, v any) (store.Document, error)
}

// Logger persists entries and logs them. Write failures degrade to a warning
// and are never propagated: the mutation an entry describes has already been
// committed, so losing the audit write must not fail the operation.
type Logger struct {
	store Writer
	log   *slog.Logger
}

// NewLogger constructs a Logger. A nil logger falls back to slog.Default.
func NewLogger(store Writer, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{store: store, log: log}
}

// Record writes the entry to the audit_log collection.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	start := time.Now()
	if _, err := l.store.Create(ctx, domain.CollectionAuditLog, entry); err != nil {
		l.log.Warn("audit write failed",
			slog.String("action", entry.Action),
			slog.String("actor", entry.Actor),
			slog.String("error", err.Error()),
		)
		return
	}
	l.log.Info("audit entry recorded",
		slog.String("action", entry.Action),
		slog.String("actor", entry.Actor),
		slog.Duration("took", time.Since(start)),
	)
}

// Nop discards entries; used where audit output is irrelevant.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}
