package schedule

import (
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
)

// periodWindow maps a period onto the calendar window containing now. Weeks
// start on Monday; months run first through last day. All windows are
// computed in UTC.
func periodWindow(now time.Time, period Period) (start, end domain.Date, ok bool) {
	today := domain.DateOf(now.UTC())
	switch period {
	case PeriodDay:
		return today, today, true
	case PeriodWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDays(-offset)
		return start, start.AddDays(6), true
	case PeriodMonth:
		y, m, _ := now.UTC().Date()
		start = domain.NewDate(y, m, 1)
		return start, domain.NewDate(y, m+1, 1).AddDays(-1), true
	default:
		return domain.Date{}, domain.Date{}, false
	}
}

// aggregate folds a session listing into the period report. Upcoming counts
// scheduled sessions dated today or later.
func aggregate(period Period, start, end domain.Date, sessions []domain.Session, today domain.Date) StatsReport {
	report := StatsReport{
		Period:   period,
		Start:    start,
		End:      end,
		Total:    len(sessions),
		ByStatus: map[domain.SessionStatus]int{},
		ByBatch:  map[domain.BatchID]int{},
	}
	for _, session := range sessions {
		report.ByStatus[session.Status]++
		report.ByBatch[session.Batch]++
		if session.Status == domain.StatusScheduled && !session.Date.Before(today) {
			report.Upcoming++
		}
	}
	return report
}
