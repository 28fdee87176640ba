package schedule

import (
	"fmt"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
)

// Scheduling policy. Fixed by product decision, deliberately not
// environment-driven.
const (
	MinAdvance        = 2 * time.Hour
	MaxAdvanceDays    = 90
	MaxBulkOperations = 50
)

// plan is the validated expansion of one bulk request.
type plan struct {
	dates   []domain.Date
	batches []domain.BatchConfig
	items   []WorkItem
}

// buildPlan validates the range and batch list against the scheduling policy
// and expands them into work items, appending every problem to verr so the
// caller reports one aggregated validation failure. No remote call happens
// before this passes.
func buildPlan(verr *faults.ValidationError, now time.Time, start, end domain.Date, excluded []time.Weekday, batchIDs []domain.BatchID) plan {
	rangeOK := true
	if start.IsZero() {
		verr.Add("startDate", "start date is required")
		rangeOK = false
	}
	if end.IsZero() {
		verr.Add("endDate", "end date is required")
		rangeOK = false
	}
	if rangeOK && end.Before(start) {
		verr.Add("endDate", "end date must not be before start date")
		rangeOK = false
	}
	if rangeOK {
		if start.Time().Before(now.Add(MinAdvance)) {
			verr.Add("startDate", fmt.Sprintf("start date must be at least %d hours in the future", int(MinAdvance.Hours())))
		}
		if end.Time().After(now.AddDate(0, 0, MaxAdvanceDays)) {
			verr.Add("endDate", fmt.Sprintf("end date must be within %d days from now", MaxAdvanceDays))
		}
	}

	for _, wd := range excluded {
		if wd < time.Sunday || wd > time.Saturday {
			verr.Add("excludedWeekdays", fmt.Sprintf("invalid weekday %d", int(wd)))
			break
		}
	}

	batches := resolveBatches(batchIDs, verr)

	var dates []domain.Date
	var items []WorkItem
	if rangeOK && verr.Empty() {
		dates = ExpandDateRange(start, end, excluded)
		if len(dates) == 0 {
			verr.Add("dateRange", "no schedulable dates remain after weekday exclusions")
		} else if size := len(dates) * len(batches); size > MaxBulkOperations {
			verr.Add("bulkSize", fmt.Sprintf("%d work items exceed the limit of %d", size, MaxBulkOperations))
		} else {
			items = BuildWorkItems(dates, batches)
		}
	}

	if !verr.Empty() {
		return plan{}
	}
	return plan{dates: dates, batches: batches, items: items}
}

// resolveBatches validates IDs against the catalog and returns the matching
// configs deduplicated in canonical catalog order.
func resolveBatches(ids []domain.BatchID, verr *faults.ValidationError) []domain.BatchConfig {
	if len(ids) == 0 {
		verr.Add("batches", "at least one batch is required")
		return nil
	}

	requested := make(map[domain.BatchID]bool, len(ids))
	for _, id := range ids {
		if _, ok := domain.BatchByID(id); !ok {
			verr.Add("batches", fmt.Sprintf("unknown batch %q", id))
			continue
		}
		requested[id] = true
	}

	ordered := make([]domain.BatchConfig, 0, len(requested))
	for _, cfg := range domain.Batches() {
		if requested[cfg.ID] {
			ordered = append(ordered, cfg)
		}
	}
	return ordered
}
