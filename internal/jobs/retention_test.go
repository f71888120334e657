package jobs_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"slimmers/internal/events"
	"slimmers/internal/jobs"
	"slimmers/internal/testsupport"
	"slimmers/internal/timeframe"
)

func TestRetentionJob(t *testing.T) {
	t.Run("disabled at zero days", func(t *testing.T) {
		job := jobs.NewRetentionJob(0)
		assert.False(t, job.Enabled())
		assert.NoError(t, job.Run(context.Background(), nil, testsupport.GetLogger()))
	})

	t.Run("removes only events before the cutoff", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "events")

		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		job := jobs.NewRetentionJob(30)
		job.Clock = timeframe.FixedTimeProvider{At: now}

		testsupport.CreateEvent(t, db, testsupport.EventSeed{Subject: "/old", OccurredAt: now.AddDate(0, 0, -45)})
		testsupport.CreateEvent(t, db, testsupport.EventSeed{Subject: "/edge", OccurredAt: now.AddDate(0, 0, -30).Add(time.Minute)})
		testsupport.CreateEvent(t, db, testsupport.EventSeed{Subject: "/new", OccurredAt: now.Add(-time.Hour)})

		require.NoError(t, job.Run(context.Background(), db, logger))

		var remaining []events.Event
		require.NoError(t, db.Order("id").Find(&remaining).Error)
		require.Len(t, remaining, 2)
		assert.Equal(t, "/edge", *remaining[0].Subject)
		assert.Equal(t, "/new", *remaining[1].Subject)
	})
}

type countingJob struct {
	runs    atomic.Int32
	enabled bool
}

func (j *countingJob) Name() string            { return "counting" }
func (j *countingJob) Interval() time.Duration { return time.Hour }
func (j *countingJob) Enabled() bool           { return j.enabled }
func (j *countingJob) Run(context.Context, *gorm.DB, *slog.Logger) error {
	j.runs.Add(1)
	return nil
}

func TestScheduler(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	enabled := &countingJob{enabled: true}
	disabled := &countingJob{}
	s := jobs.NewScheduler(dbManager, logger, enabled, disabled)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return enabled.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, int32(0), disabled.runs.Load())

	s.RunNow(context.Background())
	assert.Equal(t, int32(2), enabled.runs.Load())
}
