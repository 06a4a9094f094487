// Package scheduler runs the baseline analysis on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/jordanhubbard/convreview/pkg/models"
)

// BaselineRunner is the part of the pipeline the scheduler drives.
type BaselineRunner interface {
	EnsureBaselineAnalysis(ctx context.Context, daysBack int) (*models.BatchResult, error)
}

// Scheduler triggers baseline runs. Runs never overlap: a tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	runner   BaselineRunner
	spec     string
	daysBack int

	cron    *rcron.Cron
	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
	cancel  context.CancelFunc
}

// New creates a scheduler. spec is a six-field cron expression (with seconds).
func New(runner BaselineRunner, spec string, daysBack int) *Scheduler {
	return &Scheduler{
		runner:   runner,
		spec:     spec,
		daysBack: daysBack,
	}
}

// Start registers the schedule and starts ticking. The returned error is
// non-nil when spec does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c := rcron.New(rcron.WithSeconds())
	if _, err := c.AddFunc(s.spec, func() { s.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid baseline schedule %q: %w", s.spec, err)
	}

	s.mu.Lock()
	s.cron = c
	s.cancel = cancel
	s.mu.Unlock()

	c.Start()
	log.Printf("[Scheduler] Baseline analysis scheduled (%s, %d days back)", s.spec, s.daysBack)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a run in progress to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	if cancel != nil {
		cancel()
	}
	log.Printf("[Scheduler] Stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		log.Printf("[Scheduler] Baseline run failed: %v", err)
	}
}

// ErrAlreadyRunning is returned by RunOnce while another run is in progress.
var ErrAlreadyRunning = errors.New("baseline analysis already running")

// RunOnce performs one baseline run now.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.BatchResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	res, err := s.runner.EnsureBaselineAnalysis(ctx, s.daysBack)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
	return res, err
}

// LastRun reports when the last run finished and how it ended.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
