package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to SessionStatus
		ok       bool
	}{
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusRescheduled, true},
		{StatusRescheduled, StatusScheduled, true},
		{StatusRescheduled, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusScheduled, StatusScheduled, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSessionStatusValid(t *testing.T) {
	require.True(t, StatusScheduled.Valid())
	require.True(t, StatusRescheduled.Valid())
	require.False(t, SessionStatus("postponed").Valid())
	require.False(t, SessionStatus("").Valid())
}

func TestNewScheduledSessionTakesBatchDefaults(t *testing.T) {
	batch, ok := BatchByID(BatchEvening)
	require.True(t, ok)

	s := NewScheduledSession(NewDate(2025, time.March, 3), batch, "bring mats", "admin@club")
	require.Equal(t, BatchEvening, s.Batch)
	require.Equal(t, batch.StartTime, s.Time)
	require.Equal(t, batch.Capacity, s.Capacity)
	require.Equal(t, StatusScheduled, s.Status)
	require.Equal(t, "bring mats", s.Notes)
	require.Equal(t, "admin@club", s.ScheduledBy)
	require.Nil(t, s.CancelledAt)
}

func TestSessionJSONOmitsStoreMetadata(t *testing.T) {
	batch, _ := BatchByID(BatchMorning)
	s := NewScheduledSession(NewDate(2025, time.March, 3), batch, "", "admin@club")
	s.ID = "should-not-appear"
	s.CreatedAt = time.Now()

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.NotContains(t, raw, "ID")
	require.NotContains(t, raw, "id")
	require.NotContains(t, raw, "CreatedAt")
	require.Equal(t, "2025-03-03", raw["date"])
	require.Equal(t, string(StatusScheduled), raw["status"])
	require.NotContains(t, raw, "notes")
	require.NotContains(t, raw, "cancelledAt")
}
