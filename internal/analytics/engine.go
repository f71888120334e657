// Package analytics aggregates tracked visits and scans into dashboard summaries.
package analytics

import (
	"context"
	"fmt"
	"time"

	"slimmers/internal/events"
	"slimmers/internal/pkg/async"
	"slimmers/internal/timeframe"
)

const (
	defaultTimelineDays = 30
	weeklyWindowDays    = 7
	monthlyWindowDays   = 30
	topExercisesLimit   = 10
)

// Totals holds the partition counts of a summary. Total is always
// Tagged + Untagged.
type Totals struct {
	Tagged             int64   `json:"tagged"`
	Untagged           int64   `json:"untagged"`
	Total              int64   `json:"total"`
	UniqueTagged       int64   `json:"unique_tagged"`
	UniqueUntagged     int64   `json:"unique_untagged"`
	TaggedPerSession   float64 `json:"tagged_per_session"`
	UntaggedPerSession float64 `json:"untagged_per_session"`
}

type Breakdown struct {
	Tagged   []SubjectCount `json:"tagged"`
	Untagged []SubjectCount `json:"untagged"`
}

// Summary is the filter-respecting view of the event log.
type Summary struct {
	Totals    Totals       `json:"totals"`
	Breakdown Breakdown    `json:"breakdown"`
	Timeline  []DailyCount `json:"timeline"`
}

// Activity counts distinct sessions in trailing windows ending now. It never
// looks at the caller's date bounds.
type Activity struct {
	AsOf    time.Time `json:"as_of"`
	Weekly  int64     `json:"weekly_active_sessions"`
	Monthly int64     `json:"monthly_active_sessions"`
}

// ScanReport is the equipment-station view restricted to QR scans.
type ScanReport struct {
	TotalScans         int64            `json:"total_scans"`
	UniqueScanners     int64            `json:"unique_scanners"`
	ScansPerScanner    float64          `json:"scans_per_scanner"`
	WeeklyActive       int64            `json:"weekly_active_scanners"`
	MonthlyActive      int64            `json:"monthly_active_scanners"`
	TopExercises       []ExerciseCount  `json:"top_exercises"`
	EquipmentBreakdown []EquipmentCount `json:"equipment_breakdown"`
	ScanTimeline       []DailyScans     `json:"scan_timeline"`
}

type EngineConfig struct {
	Concurrency  int
	TimelineDays int
	Clock        timeframe.TimeProvider
}

// Engine fans the grouped queries of each operation out to a Store and
// combines them once all have returned.
type Engine struct {
	store        Store
	pool         *async.Pool
	clock        timeframe.TimeProvider
	timelineDays int
}

func NewEngine(store Store, cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = &timeframe.DefaultTimeProvider{}
	}
	if cfg.TimelineDays <= 0 {
		cfg.TimelineDays = defaultTimelineDays
	}
	return &Engine{
		store:        store,
		pool:         async.NewPool(cfg.Concurrency),
		clock:        cfg.Clock,
		timelineDays: cfg.TimelineDays,
	}
}

// ComputeSummary returns partition counts, per-subject breakdowns and the
// daily series for the events matching f.
func (e *Engine) ComputeSummary(ctx context.Context, f events.Filter) (*Summary, error) {
	tasks := []async.Task{
		{Name: "tagged_count", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.CountPartition(ctx, f, PartitionTagged)
		}},
		{Name: "untagged_count", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.CountPartition(ctx, f, PartitionUntagged)
		}},
		{Name: "tagged_breakdown", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.SubjectBreakdown(ctx, f, PartitionTagged)
		}},
		{Name: "untagged_breakdown", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.SubjectBreakdown(ctx, f, PartitionUntagged)
		}},
		{Name: "timeline", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.DailySeries(ctx, f, e.timelineDays)
		}},
	}

	results, err := e.pool.Execute(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("error computing summary: %w", err)
	}

	tagged, err := async.Get[PartitionCount](results, "tagged_count")
	if err != nil {
		return nil, err
	}
	untagged, err := async.Get[PartitionCount](results, "untagged_count")
	if err != nil {
		return nil, err
	}
	taggedRows, err := async.Get[[]SubjectCount](results, "tagged_breakdown")
	if err != nil {
		return nil, err
	}
	untaggedRows, err := async.Get[[]SubjectCount](results, "untagged_breakdown")
	if err != nil {
		return nil, err
	}
	timeline, err := async.Get[[]DailyCount](results, "timeline")
	if err != nil {
		return nil, err
	}

	return &Summary{
		Totals: Totals{
			Tagged:             tagged.Events,
			Untagged:           untagged.Events,
			Total:              tagged.Events + untagged.Events,
			UniqueTagged:       tagged.Sessions,
			UniqueUntagged:     untagged.Sessions,
			TaggedPerSession:   ratio(tagged.Events, tagged.Sessions),
			UntaggedPerSession: ratio(untagged.Events, untagged.Sessions),
		},
		Breakdown: Breakdown{
			Tagged:   nonNil(taggedRows),
			Untagged: nonNil(untaggedRows),
		},
		Timeline: nonNil(limitRows(timeline, e.timelineDays)),
	}, nil
}

// ComputeActivity counts distinct sessions over the trailing 7 and 30 days.
// Date bounds in f are dropped; kind and subject still apply.
func (e *Engine) ComputeActivity(ctx context.Context, f events.Filter) (*Activity, error) {
	now := e.clock.Now(time.UTC)
	f = f.WithoutDates()

	results, err := e.pool.Execute(ctx, e.activityTasks(f, now))
	if err != nil {
		return nil, fmt.Errorf("error computing activity: %w", err)
	}
	return activityFrom(results, now)
}

// ComputeScanReport summarises QR scans only, whatever kind f asks for.
func (e *Engine) ComputeScanReport(ctx context.Context, f events.Filter) (*ScanReport, error) {
	f.Kind = events.KindQRScan
	now := e.clock.Now(time.UTC)

	tasks := []async.Task{
		{Name: "totals", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.CountPartition(ctx, f, PartitionAll)
		}},
		{Name: "top_exercises", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.TopExercises(ctx, f, topExercisesLimit)
		}},
		{Name: "equipment", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.EquipmentBreakdown(ctx, f)
		}},
		{Name: "scan_timeline", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.DailySessions(ctx, f, e.timelineDays)
		}},
	}
	tasks = append(tasks, e.activityTasks(f.WithoutDates(), now)...)

	results, err := e.pool.Execute(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("error computing scan report: %w", err)
	}

	totals, err := async.Get[PartitionCount](results, "totals")
	if err != nil {
		return nil, err
	}
	top, err := async.Get[[]ExerciseCount](results, "top_exercises")
	if err != nil {
		return nil, err
	}
	equipment, err := async.Get[[]EquipmentCount](results, "equipment")
	if err != nil {
		return nil, err
	}
	timeline, err := async.Get[[]DailyScans](results, "scan_timeline")
	if err != nil {
		return nil, err
	}
	activity, err := activityFrom(results, now)
	if err != nil {
		return nil, err
	}

	return &ScanReport{
		TotalScans:         totals.Events,
		UniqueScanners:     totals.Sessions,
		ScansPerScanner:    ratio(totals.Events, totals.Sessions),
		WeeklyActive:       activity.Weekly,
		MonthlyActive:      activity.Monthly,
		TopExercises:       nonNil(top),
		EquipmentBreakdown: nonNil(equipment),
		ScanTimeline:       nonNil(limitRows(timeline, e.timelineDays)),
	}, nil
}

func (e *Engine) activityTasks(f events.Filter, now time.Time) []async.Task {
	return []async.Task{
		{Name: "weekly", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.DistinctSessionsBetween(ctx, f, timeframe.Trailing(now, weeklyWindowDays), now)
		}},
		{Name: "monthly", Execute: func(ctx context.Context) (interface{}, error) {
			return e.store.DistinctSessionsBetween(ctx, f, timeframe.Trailing(now, monthlyWindowDays), now)
		}},
	}
}

func activityFrom(results map[string]interface{}, now time.Time) (*Activity, error) {
	weekly, err := async.Get[int64](results, "weekly")
	if err != nil {
		return nil, err
	}
	monthly, err := async.Get[int64](results, "monthly")
	if err != nil {
		return nil, err
	}
	return &Activity{AsOf: now, Weekly: weekly, Monthly: monthly}, nil
}

// ratio guards against sessions == 0.
func ratio(count, sessions int64) float64 {
	if sessions == 0 {
		return 0
	}
	return float64(count) / float64(sessions)
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func limitRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
