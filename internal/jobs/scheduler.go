package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Interval() time.Duration
	// Enabled reports whether the job should be scheduled at all.
	Enabled() bool
	Run(ctx context.Context, db *gorm.DB, logger *slog.Logger) error
}

// Scheduler runs each enabled job once at start and then on its interval.
// It implements cartridge.BackgroundWorker.
type Scheduler struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	jobs      []Job

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	wg        sync.WaitGroup

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
}

func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		jobs:      jobs,
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(ctx context.Context, job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(ctx, s.dbManager.GetConnection(), s.logger); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start begins all enabled background jobs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.isRunning = true

	started := 0
	for _, job := range s.jobs {
		if !job.Enabled() {
			s.logger.Info("Background job disabled", slog.String("job", job.Name()))
			continue
		}
		s.startJob(s.ctx, job)
		started++
	}

	s.logger.Info("Background jobs started", slog.Int("count", started))
	return nil
}

func (s *Scheduler) startJob(ctx context.Context, job Job) {
	interval := job.Interval()
	s.logger.Info("Starting background job",
		slog.String("job", job.Name()),
		slog.Duration("interval", interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.executeJobSafely(ctx, job)
		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(ctx, job)
			case <-ctx.Done():
				s.logger.Info("Background job stopped", slog.String("job", job.Name()))
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow executes every enabled job once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Enabled() {
			s.executeJobSafely(ctx, job)
		}
	}
}
