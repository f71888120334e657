package jobs

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"slimmers/internal/events"
	"slimmers/internal/timeframe"
)

const retentionBatchSize = 1000

// RetentionJob deletes events older than the retention window. A window of
// zero days disables it and the event log stays append-only.
type RetentionJob struct {
	days  int
	Clock timeframe.TimeProvider
}

func NewRetentionJob(days int) *RetentionJob {
	return &RetentionJob{days: days, Clock: &timeframe.DefaultTimeProvider{}}
}

func (j *RetentionJob) Name() string            { return "event_retention" }
func (j *RetentionJob) Interval() time.Duration { return 24 * time.Hour }
func (j *RetentionJob) Enabled() bool           { return j.days > 0 }

// Cutoff is the instant before which events are removed.
func (j *RetentionJob) Cutoff() time.Time {
	return j.Clock.Now(time.UTC).AddDate(0, 0, -j.days)
}

func (j *RetentionJob) Run(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	if !j.Enabled() {
		return nil
	}
	cutoff := j.Cutoff()

	deleted, err := events.DeleteOlderThan(db.WithContext(ctx), logger, cutoff, retentionBatchSize)
	if err != nil {
		return err
	}

	if deleted > 0 {
		logger.Info("Deleted expired events",
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", j.days),
			slog.Time("cutoff", cutoff))
	} else {
		logger.Debug("No expired events to delete")
	}
	return nil
}
