package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchCatalogHasThreeNamedBatches(t *testing.T) {
	batches := Batches()
	require.Len(t, batches, 3)
	for _, b := range batches {
		require.NotEmpty(t, b.Name)
		require.NotEmpty(t, b.StartTime)
		require.NotEmpty(t, b.Color)
		require.Positive(t, b.Capacity)
	}
}

func TestBatchesOrderedByStartTime(t *testing.T) {
	batches := Batches()
	for i := 1; i < len(batches); i++ {
		require.LessOrEqual(t, batches[i-1].StartTime, batches[i].StartTime)
	}
	require.Equal(t, BatchMorning, batches[0].ID)
	require.Equal(t, BatchEvening, batches[len(batches)-1].ID)
}

func TestBatchByID(t *testing.T) {
	cfg, ok := BatchByID(BatchAfternoon)
	require.True(t, ok)
	require.Equal(t, "Afternoon Batch", cfg.Name)

	_, ok = BatchByID("midnight-batch")
	require.False(t, ok)
}
