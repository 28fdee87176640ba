package schedule

import (
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
)

// ExpandDateRange returns every date in [start, end] whose weekday is not
// excluded, in ascending order. Both endpoints are inclusive.
func ExpandDateRange(start, end domain.Date, excluded []time.Weekday) []domain.Date {
	skip := make(map[time.Weekday]bool, len(excluded))
	for _, wd := range excluded {
		skip[wd] = true
	}

	dates := make([]domain.Date, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		if skip[d.Weekday()] {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// BuildWorkItems crosses dates with batches: date-major, batch-minor. The
// batch slice is expected in canonical catalog order so the result is
// deterministic for a given request.
func BuildWorkItems(dates []domain.Date, batches []domain.BatchConfig) []WorkItem {
	items := make([]WorkItem, 0, len(dates)*len(batches))
	for _, d := range dates {
		for _, b := range batches {
			items = append(items, WorkItem{Date: d, Batch: b})
		}
	}
	return items
}
