package domain

import "sort"

// BatchID identifies a recurring training batch in the static catalog.
type BatchID string

const (
	BatchMorning   BatchID = "morning-batch"
	BatchAfternoon BatchID = "afternoon-batch"
	BatchEvening   BatchID = "evening-batch"
)

// BatchConfig describes one batch in the static catalog: display name,
// default start time (HH:MM, club-local), session capacity and the color tag
// used by clients.
type BatchConfig struct {
	ID        BatchID `json:"id"`
	Name      string  `json:"name"`
	StartTime string  `json:"startTime"`
	Capacity  int     `json:"capacity"`
	Color     string  `json:"color"`
}

// The catalog is fixed at build time. Changing it is a deploy, not a write.
var batchCatalog = map[BatchID]BatchConfig{
	BatchMorning: {
		ID:        BatchMorning,
		Name:      "Morning Batch",
		StartTime: "06:30",
		Capacity:  20,
		Color:     "#2563eb",
	},
	BatchAfternoon: {
		ID:        BatchAfternoon,
		Name:      "Afternoon Batch",
		StartTime: "16:00",
		Capacity:  15,
		Color:     "#f59e0b",
	},
	BatchEvening: {
		ID:        BatchEvening,
		Name:      "Evening Batch",
		StartTime: "18:30",
		Capacity:  25,
		Color:     "#7c3aed",
	},
}

// BatchByID looks up a batch configuration in the catalog.
func BatchByID(id BatchID) (BatchConfig, bool) {
	cfg, ok := batchCatalog[id]
	return cfg, ok
}

// Batches returns the catalog ordered by default start time, ties broken by
// ID. The order is the canonical batch-minor ordering used when expanding
// bulk operations.
func Batches() []BatchConfig {
	out := make([]BatchConfig, 0, len(batchCatalog))
	for _, cfg := range batchCatalog {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}
