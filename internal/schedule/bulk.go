package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/audit"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/observability"
	"github.com/Chirag4452/sportsclub-core/internal/retry"
	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Coordinator runs bulk mutations over a work-item list: strictly sequential,
// one retry-wrapped remote call at a time, isolating each item's failure from
// the rest of the batch. It emits a single summarizing audit entry after the
// loop, never per item.
type Coordinator struct {
	store      Store
	retrier    *retry.Retrier
	classifier *faults.Classifier
	audit      audit.Recorder
	log        *slog.Logger
	now        func() time.Time
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(st Store, retrier *retry.Retrier, classifier *faults.Classifier, recorder audit.Recorder, log *slog.Logger, now func() time.Time) *Coordinator {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		store:      st,
		retrier:    retrier,
		classifier: classifier,
		audit:      recorder,
		log:        log,
		now:        now,
	}
}

// Schedule creates one scheduled session per work item. Per-item failures are
// accumulated, never thrown; the returned error is non-nil only when the
// context ends, in which case the partial result is discarded by the caller.
func (c *Coordinator) Schedule(ctx context.Context, items []WorkItem, notes, scheduledBy string) (BulkResult, error) {
	start := time.Now()
	defer func() { bulkDuration.WithLabelValues("schedule").Observe(time.Since(start).Seconds()) }()

	result := newBulkResult()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return BulkResult{}, err
		}

		doc, err := retry.Do(ctx, c.retrier, "sessions.create", func(ctx context.Context) (store.Document, error) {
			return c.store.Create(ctx, domain.CollectionSessions, domain.NewScheduledSession(item.Date, item.Batch, notes, scheduledBy))
		})
		if err != nil {
			c.recordFailure(&result, "schedule", item, err)
			continue
		}

		session, err := sessionFromDocument(doc)
		if err != nil {
			c.recordFailure(&result, "schedule", item, err)
			continue
		}
		result.Succeeded++
		result.Sessions = append(result.Sessions, session)
		sessionsScheduled.Inc()
		observability.RecordSessionScheduled(session.CreatedAt)
	}

	c.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionSessionsScheduled,
		Actor:   scheduledBy,
		Details: bulkDetails(items, "scheduled", result),
	})
	return result, nil
}

// Cancel moves every scheduled session matching a work item to cancelled.
// A slot with no matches contributes nothing: cancelling nothing is not a
// failure. Matches beyond the first are cancelled too; the coordinator does
// not assume slot uniqueness.
func (c *Coordinator) Cancel(ctx context.Context, items []WorkItem, reason, cancelledBy string) (BulkResult, error) {
	start := time.Now()
	defer func() { bulkDuration.WithLabelValues("cancel").Observe(time.Since(start).Seconds()) }()

	result := newBulkResult()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return BulkResult{}, err
		}

		q := scheduledSlotQuery(item.Date, item.Batch.ID)
		docs, err := retry.Do(ctx, c.retrier, "sessions.query", func(ctx context.Context) ([]store.Document, error) {
			return c.store.Query(ctx, domain.CollectionSessions, q)
		})
		if err != nil {
			c.recordFailure(&result, "cancel", item, err)
			continue
		}

		for _, doc := range docs {
			current, err := sessionFromDocument(doc)
			if err != nil {
				c.recordFailure(&result, "cancel", item, err)
				continue
			}
			// The query matched on scheduled, but the slot may have moved on
			// since; re-check the transition before writing.
			if !current.Status.CanTransition(domain.StatusCancelled) {
				continue
			}

			patch := map[string]any{
				"status":             string(domain.StatusCancelled),
				"cancellationReason": reason,
				"cancelledBy":        cancelledBy,
				"cancelledAt":        c.now().UTC().Format(time.RFC3339Nano),
			}
			updated, err := retry.Do(ctx, c.retrier, "sessions.update", func(ctx context.Context) (store.Document, error) {
				return c.store.Update(ctx, domain.CollectionSessions, doc.ID, patch)
			})
			if err != nil {
				c.recordFailure(&result, "cancel", item, err)
				continue
			}

			session, err := sessionFromDocument(updated)
			if err != nil {
				c.recordFailure(&result, "cancel", item, err)
				continue
			}
			result.Succeeded++
			result.Sessions = append(result.Sessions, session)
			sessionsCancelled.Inc()
			observability.RecordSessionCancelled(session.UpdatedAt)
		}
	}

	c.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionSessionsCancelled,
		Actor:   cancelledBy,
		Details: bulkDetails(items, "cancelled", result),
	})
	return result, nil
}

func (c *Coordinator) recordFailure(result *BulkResult, op string, item WorkItem, err error) {
	classified := c.asClassified(err, "sessions."+op)
	result.Failed++
	result.Failures = append(result.Failures, ItemFailure{Date: item.Date, Batch: item.Batch.ID, Err: classified})
	bulkItemFailures.WithLabelValues(op).Inc()
	c.log.Warn("bulk item failed",
		slog.String("operation", op),
		slog.String("date", item.Date.String()),
		slog.String("batch", string(item.Batch.ID)),
		slog.String("code", classified.Code),
	)
}

// asClassified unwraps a classification produced further down the stack or
// classifies a raw error on the spot.
func (c *Coordinator) asClassified(err error, operation string) *faults.ClassifiedError {
	var classified *faults.ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}
	return c.classifier.Classify(err, operation, nil)
}

func newBulkResult() BulkResult {
	return BulkResult{Sessions: []domain.Session{}, Failures: []ItemFailure{}}
}

// bulkDetails summarizes one bulk call for its audit entry.
func bulkDetails(items []WorkItem, succeededKey string, result BulkResult) map[string]any {
	details := map[string]any{
		succeededKey: result.Succeeded,
		"failed":     result.Failed,
	}
	if len(items) == 0 {
		return details
	}

	details["startDate"] = items[0].Date.String()
	details["endDate"] = items[len(items)-1].Date.String()

	seen := map[domain.BatchID]bool{}
	batches := []string{}
	for _, item := range items {
		if !seen[item.Batch.ID] {
			seen[item.Batch.ID] = true
			batches = append(batches, string(item.Batch.ID))
		}
	}
	details["batches"] = batches
	return details
}

// sessionFromDocument rehydrates a Session, lifting the store-assigned
// identity and timestamps onto the model.
func sessionFromDocument(doc store.Document) (domain.Session, error) {
	var session domain.Session
	if err := doc.Decode(&session); err != nil {
		return domain.Session{}, err
	}
	session.ID = doc.ID
	session.CreatedAt = doc.CreatedAt
	session.UpdatedAt = doc.UpdatedAt
	return session, nil
}
