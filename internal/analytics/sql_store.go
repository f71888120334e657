package analytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"slimmers/internal/events"
)

// SQLStore implements Store over the events table.
type SQLStore struct {
	db  *gorm.DB
	tag string
}

// NewSQLStore returns a store that classifies events carrying tag as QR-origin.
func NewSQLStore(db *gorm.DB, tag string) *SQLStore {
	return &SQLStore{db: db, tag: tag}
}

func (s *SQLStore) base(ctx context.Context, f events.Filter) *gorm.DB {
	return s.db.WithContext(ctx).Model(&events.Event{}).Scopes(f.Scope)
}

func (s *SQLStore) partition(p Partition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch p {
		case PartitionTagged:
			return db.Where("acquisition_tag = ?", s.tag)
		case PartitionUntagged:
			return db.Where("(acquisition_tag IS NULL OR acquisition_tag <> ?)", s.tag)
		default:
			return db
		}
	}
}

func (s *SQLStore) CountPartition(ctx context.Context, f events.Filter, p Partition) (PartitionCount, error) {
	var row PartitionCount
	err := s.base(ctx, f).Scopes(s.partition(p)).
		Select("COUNT(*) AS events, COUNT(DISTINCT session_id) AS sessions").
		Scan(&row).Error
	if err != nil {
		return PartitionCount{}, fmt.Errorf("error counting %s events: %w", p, err)
	}
	return row, nil
}

func (s *SQLStore) SubjectBreakdown(ctx context.Context, f events.Filter, p Partition) ([]SubjectCount, error) {
	rows := []SubjectCount{}
	err := s.base(ctx, f).Scopes(s.partition(p)).
		Select("subject, COUNT(*) AS count").
		Group("subject").
		Order("count DESC, MIN(id) ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping %s events by subject: %w", p, err)
	}
	return rows, nil
}

func (s *SQLStore) DailySeries(ctx context.Context, f events.Filter, limit int) ([]DailyCount, error) {
	rows := []DailyCount{}
	err := s.base(ctx, f).
		Select(`DATE(occurred_at) AS date,
			SUM(CASE WHEN acquisition_tag = ? THEN 1 ELSE 0 END) AS tagged,
			SUM(CASE WHEN acquisition_tag = ? THEN 0 ELSE 1 END) AS untagged,
			COUNT(*) AS total`, s.tag, s.tag).
		Group("DATE(occurred_at)").
		Order("date DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error building daily series: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) DistinctSessionsBetween(ctx context.Context, f events.Filter, since, until time.Time) (int64, error) {
	var count int64
	err := s.base(ctx, f).
		Where("occurred_at >= ? AND occurred_at <= ?", since.UTC(), until.UTC()).
		Select("COUNT(DISTINCT session_id)").
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting sessions between %s and %s: %w",
			since.Format(time.RFC3339), until.Format(time.RFC3339), err)
	}
	return count, nil
}

func (s *SQLStore) TopExercises(ctx context.Context, f events.Filter, limit int) ([]ExerciseCount, error) {
	rows := []ExerciseCount{}
	err := s.base(ctx, f).
		Select("exercise_name, subject AS exercise_path, equipment_type, COUNT(*) AS count").
		Group("subject, exercise_name, equipment_type").
		Order("count DESC, MIN(id) ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error ranking exercises: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) EquipmentBreakdown(ctx context.Context, f events.Filter) ([]EquipmentCount, error) {
	rows := []EquipmentCount{}
	err := s.base(ctx, f).
		Select("equipment_type, COUNT(*) AS count").
		Group("equipment_type").
		Order("count DESC, MIN(id) ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error grouping by equipment: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) DailySessions(ctx context.Context, f events.Filter, limit int) ([]DailyScans, error) {
	rows := []DailyScans{}
	err := s.base(ctx, f).
		Select("DATE(occurred_at) AS date, COUNT(*) AS scans, COUNT(DISTINCT session_id) AS unique_sessions").
		Group("DATE(occurred_at)").
		Order("date DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error building scan timeline: %w", err)
	}
	return rows, nil
}
