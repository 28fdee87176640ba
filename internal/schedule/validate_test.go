package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
)

// Tuesday noon, well clear of the two-hour advance window for any date from
// the following Monday on.
var planNow = time.Date(2024, time.December, 10, 12, 0, 0, 0, time.UTC)

func TestBuildPlanExpandsValidRequest(t *testing.T) {
	verr := faults.NewValidationError()
	p := buildPlan(verr, planNow,
		mustDate(t, "2024-12-16"), mustDate(t, "2024-12-22"),
		[]time.Weekday{time.Sunday, time.Saturday},
		[]domain.BatchID{domain.BatchEvening, domain.BatchMorning, domain.BatchMorning},
	)

	require.True(t, verr.Empty(), "unexpected validation problems: %v", verr.Fields)
	require.Len(t, p.dates, 5)
	require.Len(t, p.items, 10)

	// Duplicate batch IDs collapse and come back in catalog order.
	require.Len(t, p.batches, 2)
	require.Equal(t, domain.BatchMorning, p.batches[0].ID)
	require.Equal(t, domain.BatchEvening, p.batches[1].ID)
	require.Equal(t, domain.BatchMorning, p.items[0].Batch.ID)
	require.Equal(t, domain.BatchEvening, p.items[1].Batch.ID)
}

func TestBuildPlanAggregatesAllProblems(t *testing.T) {
	verr := faults.NewValidationError()
	verr.Add("scheduledBy", "the scheduling user is required")

	p := buildPlan(verr, planNow, domain.Date{}, domain.Date{}, nil, nil)

	require.Empty(t, p.items)
	require.Len(t, verr.Fields, 4)
	require.Contains(t, verr.Fields, "scheduledBy")
	require.Contains(t, verr.Fields, "startDate")
	require.Contains(t, verr.Fields, "endDate")
	require.Contains(t, verr.Fields, "batches")
}

func TestBuildPlanPolicy(t *testing.T) {
	morning := []domain.BatchID{domain.BatchMorning}

	cases := []struct {
		name      string
		start     string
		end       string
		excluded  []time.Weekday
		batches   []domain.BatchID
		wantField string
	}{
		{
			name:      "start inside the advance window",
			start:     "2024-12-10",
			end:       "2024-12-12",
			batches:   morning,
			wantField: "startDate",
		},
		{
			name:      "end beyond ninety days",
			start:     "2024-12-16",
			end:       "2025-04-01",
			batches:   morning,
			wantField: "endDate",
		},
		{
			name:      "end before start",
			start:     "2024-12-20",
			end:       "2024-12-16",
			batches:   morning,
			wantField: "endDate",
		},
		{
			name:      "weekday outside calendar range",
			start:     "2024-12-16",
			end:       "2024-12-18",
			excluded:  []time.Weekday{7},
			batches:   morning,
			wantField: "excludedWeekdays",
		},
		{
			name:      "unknown batch",
			start:     "2024-12-16",
			end:       "2024-12-18",
			batches:   []domain.BatchID{"night-batch"},
			wantField: "batches",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := faults.NewValidationError()
			p := buildPlan(verr, planNow, mustDate(t, tc.start), mustDate(t, tc.end), tc.excluded, tc.batches)

			require.False(t, verr.Empty())
			require.Contains(t, verr.Fields, tc.wantField)
			require.Empty(t, p.items)
		})
	}
}

func TestBuildPlanRejectsOversizedExpansion(t *testing.T) {
	// 17 dates x 3 batches = 51 work items, one over the limit.
	verr := faults.NewValidationError()
	p := buildPlan(verr, planNow,
		mustDate(t, "2024-12-16"), mustDate(t, "2025-01-01"),
		nil,
		[]domain.BatchID{domain.BatchMorning, domain.BatchAfternoon, domain.BatchEvening},
	)

	require.Contains(t, verr.Fields, "bulkSize")
	require.Empty(t, p.items)
}

func TestBuildPlanRejectsEmptyExpansion(t *testing.T) {
	verr := faults.NewValidationError()
	p := buildPlan(verr, planNow,
		mustDate(t, "2024-12-16"), mustDate(t, "2024-12-22"),
		[]time.Weekday{0, 1, 2, 3, 4, 5, 6},
		[]domain.BatchID{domain.BatchMorning},
	)

	require.Contains(t, verr.Fields, "dateRange")
	require.Empty(t, p.items)
}
