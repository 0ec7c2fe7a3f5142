package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// JobName represents the name of a periodic job.
type JobName string

// Scheduler represents a background job scheduler.
type Scheduler struct {
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
}

// JobFunc represents the type of function that executes a scheduled job.
type JobFunc func(context.Context) error

var (
	// ErrInvalidCronTab is returned when an invalid crontab expression is provided.
	ErrInvalidCronTab = errors.New("invalid crontab expression")

	// ErrInvalidInterval is returned when a job interval isn't positive.
	ErrInvalidInterval = errors.New("invalid job interval")
)

// NewScheduler creates a new Scheduler.
func NewScheduler() (Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return Scheduler{}, err
	}

	return Scheduler{
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
	}, nil
}

// RegisterJob registers a job in the Scheduler.
//
// If the job does not exist, it is created. If it already exists, it is updated.
func (s *Scheduler) RegisterJob(name JobName, crontab string, jobFunc JobFunc) error {
	cron := gocron.NewDefaultCron(false)

	err := cron.IsValid(crontab, time.UTC, time.Now())
	if err != nil {
		return ErrInvalidCronTab
	}

	return s.register(name, gocron.CronJob(crontab, false), wrapJob(name, jobFunc, true))
}

// RegisterInterval registers a job running every interval, never overlapping with itself.
//
// Only failures of interval jobs are logged.
func (s *Scheduler) RegisterInterval(name JobName, interval time.Duration, jobFunc JobFunc) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	return s.register(name, gocron.DurationJob(interval), wrapJob(name, jobFunc, false))
}

func (s *Scheduler) register(name JobName, definition gocron.JobDefinition, task func(context.Context)) error {
	id, ok := s.jobs[name]
	if ok {
		_, err := s.scheduler.Update(id, definition, gocron.NewTask(task), gocron.WithSingletonMode(gocron.LimitModeReschedule))

		return err
	}

	job, err := s.scheduler.NewJob(definition, gocron.NewTask(task), gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return err
	}

	s.jobs[name] = job.ID()

	return nil
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown shuts down the scheduler and its registered jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func wrapJob(name JobName, jobFunc JobFunc, verbose bool) func(context.Context) {
	return func(ctx context.Context) {
		select {
		// If the context is already cancelled, don't start the job.
		case <-ctx.Done():
			return

		default:
			if verbose {
				slog.InfoContext(ctx, "Executing periodic job", slog.String("job", string(name)))
			}

			err := jobFunc(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Error running periodic job", slog.String("job", string(name)), slog.Any("error", err))
			}
		}
	}
}
