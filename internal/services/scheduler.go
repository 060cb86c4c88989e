package services

import (
	"context"
	"sync"
	"time"

	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// Scheduler runs analysis jobs in the background so the slash command
// can acknowledge within Slack's three second window. Fire-and-forget:
// a queued job has no queryable status, its outcome surfaces only as
// delivered messages (or an error callback).
type Scheduler struct {
	pipeline *Pipeline
	delivery *DeliveryService
	logger   *logger.Logger

	jobs       chan models.Job
	jobTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	activeJobs sync.Map // job_id -> models.Job
}

const (
	defaultQueueSize  = 32
	defaultJobTimeout = 5 * time.Minute
)

func NewScheduler(pipeline *Pipeline, delivery *DeliveryService, workers int, log *logger.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	s := &Scheduler{
		pipeline:   pipeline,
		delivery:   delivery,
		logger:     log,
		jobs:       make(chan models.Job, defaultQueueSize),
		jobTimeout: defaultJobTimeout,
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	log.Info("scheduler started", "workers", workers, "queue_size", defaultQueueSize)

	return s
}

// Enqueue accepts a job for background processing and returns
// immediately. It fails only when the queue is full or the scheduler is
// shutting down.
func (s *Scheduler) Enqueue(job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.NewInternalError("SCHEDULER_CLOSED", "scheduler is shutting down")
	}

	select {
	case s.jobs <- job:
		s.activeJobs.Store(job.ID, job)
		s.logger.LogJob(job.ID, job.Context.UserID, "job_queued", 0, nil)
		return nil
	default:
		return models.NewInternalError("QUEUE_FULL", "analysis queue is full, try again shortly")
	}
}

// ActiveJobCount reports jobs queued or running, for the health surface.
func (s *Scheduler) ActiveJobCount() int {
	count := 0
	s.activeJobs.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for job := range s.jobs {
		s.runJob(job)
		s.activeJobs.Delete(job.ID)
	}
}

func (s *Scheduler) runJob(job models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	startTime := time.Now()

	// Background results always travel as structured data; the display
	// format is decided per message at delivery time.
	job.Request.OutputFormat = models.FormatJSON

	stories, err := s.pipeline.Run(ctx, job)
	if err != nil {
		s.logger.LogJob(job.ID, job.Context.UserID, "job_failed", time.Since(startTime), err)
		s.delivery.DeliverError(ctx, job, err)
		return
	}

	posted := s.delivery.Deliver(ctx, job, stories)
	s.logger.LogJob(job.ID, job.Context.UserID, "job_completed", time.Since(startTime), nil)
	s.logger.WithFields(logger.Fields{
		"job_id":   job.ID,
		"analyzed": len(stories),
		"posted":   posted,
	}).Info("analysis delivered")
}

// Close stops accepting jobs and waits for in-flight ones, up to the
// given grace period.
func (s *Scheduler) Close(grace time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler drained")
		return nil
	case <-time.After(grace):
		return models.NewTimeoutError("SCHEDULER_DRAIN_TIMEOUT", "jobs still running at shutdown")
	}
}
