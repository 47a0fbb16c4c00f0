// Package scheduler runs background jobs such as the insurance sweep on a
// fixed interval.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JobFn is one run of a periodic job. Errors are logged; the job keeps its
// schedule.
type JobFn func(ctx context.Context) error

// Scheduler owns a set of named periodic jobs.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

type job struct {
	fn      JobFn
	ticker  *time.Ticker
	stopCh  chan struct{}
	running atomic.Bool
}

// New creates a Scheduler whose jobs receive contexts derived from parent.
func New(parent context.Context, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Every registers fn to run each interval. A job with the same name is
// replaced. A tick that arrives while the previous run is still busy is
// skipped.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old.stopCh)
	}
	j := &job{fn: fn, ticker: time.NewTicker(interval), stopCh: make(chan struct{})}
	s.jobs[name] = j

	go func() {
		defer j.ticker.Stop()
		for {
			select {
			case <-j.ticker.C:
				s.runExclusive(name, j)
			case <-j.stopCh:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler job registered", zap.String("job", name), zap.Duration("interval", interval))
}

// RunNow runs the named job once on the calling goroutine. It reports false
// when no such job exists or a run is already in progress.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.runExclusive(name, j)
}

func (s *Scheduler) runExclusive(name string, j *job) bool {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler job still running, run skipped", zap.String("job", name))
		return false
	}
	defer j.running.Store(false)
	s.run(name, j.fn)
	return true
}

func (s *Scheduler) run(name string, fn JobFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", zap.String("job", name), zap.Any("recover", r))
		}
	}()
	start := time.Now()
	if err := fn(s.ctx); err != nil {
		s.logger.Error("scheduler job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduler job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Remove stops the named job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		close(j.stopCh)
		delete(s.jobs, name)
	}
}

// Stop cancels the context handed to running jobs and stops every ticker.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.cancel()
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
