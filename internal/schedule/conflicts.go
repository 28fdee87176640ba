package schedule

import (
	"context"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/retry"
	"github.com/Chirag4452/sportsclub-core/internal/store"
)

// Detector reports which work items collide with existing scheduled
// sessions. The check is advisory: no lock is held between it and any
// subsequent create, so the store-level uniqueness constraint remains the
// final arbiter.
type Detector struct {
	store   Store
	retrier *retry.Retrier
}

// NewDetector constructs a Detector.
func NewDetector(st Store, retrier *retry.Retrier) *Detector {
	return &Detector{store: st, retrier: retrier}
}

// Check queries the store once per work item and records a conflict against
// the first scheduled session found for that (date, batch).
func (d *Detector) Check(ctx context.Context, items []WorkItem) (ConflictReport, error) {
	report := ConflictReport{Conflicts: []Conflict{}}

	for _, item := range items {
		q := scheduledSlotQuery(item.Date, item.Batch.ID)
		docs, err := retry.Do(ctx, d.retrier, "conflicts.query", func(ctx context.Context) ([]store.Document, error) {
			return d.store.Query(ctx, domain.CollectionSessions, q)
		})
		if err != nil {
			return ConflictReport{}, err
		}
		if len(docs) == 0 {
			continue
		}
		existing, err := sessionFromDocument(docs[0])
		if err != nil {
			return ConflictReport{}, err
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			Date:     item.Date,
			Batch:    item.Batch.ID,
			Existing: existing,
		})
	}

	report.HasConflicts = len(report.Conflicts) > 0
	if report.HasConflicts {
		conflictsDetected.Add(float64(len(report.Conflicts)))
	}
	return report, nil
}

// scheduledSlotQuery matches the scheduled sessions occupying (date, batch).
func scheduledSlotQuery(date domain.Date, batch domain.BatchID) store.Query {
	return store.Query{
		Filters: []store.Filter{
			store.Where("date", date.String()),
			store.Where("batch", string(batch)),
			store.Where("status", string(domain.StatusScheduled)),
		},
	}
}
