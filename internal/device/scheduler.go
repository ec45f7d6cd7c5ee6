package device

import (
	"context"
	"sync"
	"time"
)

// Job is a periodic trigger. Each job runs on its own ticker goroutine,
// independent of every other job — a panic or error in one never affects
// another.
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// Scheduler is the external collaborator spec §4.8 describes for timed
// triggers: jobs start on Start and stop on Stop, each invocation runs
// independently, and job errors/panics are trapped and logged rather than
// propagated.
type Scheduler struct {
	logger Logger

	mu      sync.Mutex
	jobs    []Job
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler constructs an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{logger: noopLogger{}}
}

// SetLogger sets the logger used to report job failures and panics.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// AddJob registers a job. Must be called before Start; jobs added after
// Start do not take effect until the next Start.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches one ticker-driven goroutine per registered job. Calling
// Start while already running is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.done = make(chan struct{})

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job, s.done)
	}
	return nil
}

func (s *Scheduler) runJob(job Job, done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.invoke(job)
		}
	}
}

func (s *Scheduler) invoke(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", "job", job.Name, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), job.Interval)
	defer cancel()
	if err := job.Fn(ctx); err != nil {
		s.logger.Warn("scheduler job failed", "job", job.Name, "error", err)
	}
}

// Stop signals every job goroutine to exit and waits for them to finish.
// Calling Stop when not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}
