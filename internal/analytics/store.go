package analytics

import (
	"context"
	"time"

	"slimmers/internal/events"
)

// Partition selects which side of the acquisition-tag split a query reads.
type Partition int

const (
	PartitionAll Partition = iota
	// PartitionTagged holds events whose tag equals the QR acquisition tag exactly.
	PartitionTagged
	// PartitionUntagged holds everything else, including NULL and other tags.
	PartitionUntagged
)

func (p Partition) String() string {
	switch p {
	case PartitionTagged:
		return "tagged"
	case PartitionUntagged:
		return "untagged"
	default:
		return "all"
	}
}

type PartitionCount struct {
	Events   int64 `json:"events"`
	Sessions int64 `json:"sessions"`
}

// SubjectCount is one breakdown row. A nil Subject is the group of events
// recorded without one; it is never merged with the empty string.
type SubjectCount struct {
	Subject *string `json:"subject"`
	Count   int64   `json:"count"`
}

type DailyCount struct {
	Date     string `json:"date"`
	Tagged   int64  `json:"tagged"`
	Untagged int64  `json:"untagged"`
	Total    int64  `json:"total"`
}

type ExerciseCount struct {
	ExerciseName  *string `json:"exercise_name"`
	ExercisePath  *string `json:"exercise_path"`
	EquipmentType *string `json:"equipment_type"`
	Count         int64   `json:"count"`
}

type EquipmentCount struct {
	EquipmentType *string `json:"equipment_type"`
	Count         int64   `json:"count"`
}

type DailyScans struct {
	Date           string `json:"date"`
	Scans          int64  `json:"scans"`
	UniqueSessions int64  `json:"unique_sessions"`
}

// Store runs the grouped queries the engine combines. Every method applies
// the filter in full.
type Store interface {
	CountPartition(ctx context.Context, f events.Filter, p Partition) (PartitionCount, error)
	SubjectBreakdown(ctx context.Context, f events.Filter, p Partition) ([]SubjectCount, error)
	// DailySeries returns at most limit dates, most recent first.
	DailySeries(ctx context.Context, f events.Filter, limit int) ([]DailyCount, error)
	// DistinctSessionsBetween counts sessions with an event in [since, until].
	DistinctSessionsBetween(ctx context.Context, f events.Filter, since, until time.Time) (int64, error)
	TopExercises(ctx context.Context, f events.Filter, limit int) ([]ExerciseCount, error)
	EquipmentBreakdown(ctx context.Context, f events.Filter) ([]EquipmentCount, error)
	DailySessions(ctx context.Context, f events.Filter, limit int) ([]DailyScans, error)
}
