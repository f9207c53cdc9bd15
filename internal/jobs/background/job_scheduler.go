package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// OrphanSweeper removes designs whose assets never finished uploading.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error)
}

// Config controls the orphan sweep cadence.
type Config struct {
	SweepInterval time.Duration
	MaxAge        time.Duration
	// RunTimeout bounds a single sweep. Defaults to SweepInterval.
	RunTimeout time.Duration
}

const orphanSweepJob = "orphan-design-sweep"

// JobScheduler runs the periodic maintenance jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	sweeper   OrphanSweeper
	cfg       Config
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates the scheduler and registers the orphan sweep.
func NewJobScheduler(sweeper OrphanSweeper, cfg Config, logger *zap.Logger) (*JobScheduler, error) {
	if cfg.SweepInterval <= 0 || cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("sweep interval and max age must be positive")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.SweepInterval
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		cfg:       cfg,
		logger:    logger.Named("jobs"),
		jobs:      make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(js.cfg.SweepInterval),
		gocron.NewTask(js.sweepOrphans),
		gocron.WithName(orphanSweepJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", orphanSweepJob, err)
	}
	js.jobs[orphanSweepJob] = job
	return nil
}

func (js *JobScheduler) sweepOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), js.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	swept, err := js.sweeper.SweepOrphans(ctx, js.cfg.MaxAge)
	if err != nil {
		js.logger.Error("orphan sweep failed",
			zap.Int("swept", swept),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	if swept > 0 {
		js.logger.Info("orphan sweep removed pending designs",
			zap.Int("swept", swept),
			zap.Duration("max_age", js.cfg.MaxAge))
	}
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

// AddJob adds a custom job to the scheduler
func (js *JobScheduler) AddJob(name string, interval time.Duration, taskFn interface{}, params ...interface{}) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(taskFn, params...),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	js.jobs[name] = job
	js.logger.Info("added job", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobs[name]; exists {
		delete(js.jobs, name)
		return js.scheduler.RemoveJob(job.ID())
	}
	return nil
}

// JobStatus describes one scheduled job.
type JobStatus struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	LastRun time.Time `json:"lastRun,omitempty"`
}

// Status returns the scheduled jobs sorted by name.
func (js *JobScheduler) Status() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		st := JobStatus{Name: name}
		st.NextRun, _ = job.NextRun()
		st.LastRun, _ = job.LastRun()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
