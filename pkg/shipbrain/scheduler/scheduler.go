// Package scheduler runs periodic maintenance jobs on fixed intervals.
//
// Each job has its own ticker goroutine; the goroutines are owned by an
// errgroup and all stop when the context passed to Run is cancelled. A job
// that fails or panics is logged and runs again on its next tick. Jobs
// read the authoritative stores on every run, so a tick that observes
// slightly stale state is harmless.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Sentinel errors.
var (
	ErrDuplicate = errors.New("job already scheduled")
	ErrInterval  = errors.New("job interval must be positive")
	ErrUnknown   = errors.New("unknown job")
	ErrRunning   = errors.New("scheduler already running")
)

// Func is the body of a job.
type Func func(ctx context.Context) error

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the interval.
	Timeout time.Duration
	Run     Func
}

// Stats counts runs of one job.
type Stats struct {
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	LastRun  time.Time `json:"lastRun,omitempty"`
	LastErr  string    `json:"lastError,omitempty"`
}

// Scheduler owns the job goroutines.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	stats   map[string]*Stats
	running bool
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler with no jobs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{stats: make(map[string]*Stats)}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.ComponentLogger(s.logger, "scheduler")
	return s
}

// Add registers a job. Jobs cannot be added while the scheduler runs.
func (s *Scheduler) Add(j Job) error {
	if j.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInterval, j.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	if _, ok := s.stats[j.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, j.Name)
	}
	s.jobs = append(s.jobs, j)
	s.stats[j.Name] = &Stats{}
	return nil
}

// Every is shorthand for Add with a job built from its arguments.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) error {
	return s.Add(Job{Name: name, Interval: interval, Run: fn})
}

// Run starts every job and blocks until ctx is cancelled. It returns nil on
// cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started", slog.Int("jobs", len(jobs)))
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			s.loop(gctx, j)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, j)
		}
	}
}

// RunNow runs one job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			job = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return s.execute(ctx, *job)
}

func (s *Scheduler) execute(ctx context.Context, j Job) (err error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = j.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
		s.record(j.Name, err)
		if err != nil {
			s.logger.Warn("job failed", slog.String("job", j.Name), slog.String("error", err.Error()))
		}
	}()
	return j.Run(runCtx)
}

func (s *Scheduler) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[name]
	st.Runs++
	st.LastRun = time.Now()
	st.LastErr = ""
	if err != nil {
		st.Failures++
		st.LastErr = err.Error()
	}
}

// Stats returns run counters per job.
func (s *Scheduler) Stats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

// Jobs lists job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Name
	}
	return out
}
