package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/backoff"
	"github.com/i474232898/aqi-collector/internal/metrics"
)

const (
	// DefaultQuantum bounds a single sleep so shutdown is noticed even during
	// a multi-hour backoff.
	DefaultQuantum = 60 * time.Second
	// DefaultFallbackWait applies when a fault happens before the backoff
	// state could be updated.
	DefaultFallbackWait = 60 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrStopTimeout    = errors.New("scheduler did not stop in time")
)

// State is a state of the polling loop.
type State int

const (
	StateIdle State = iota
	StateWaitingForInterval
	StateAttempting
	StateWaitingForBackoff
	StateShutdownRequested
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForInterval:
		return "waiting_for_interval"
	case StateAttempting:
		return "attempting"
	case StateWaitingForBackoff:
		return "waiting_for_backoff"
	case StateShutdownRequested:
		return "shutdown_requested"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Collector runs one fetch cycle and caches the result on success.
type Collector interface {
	FetchAndStore(ctx context.Context) (airquality.Reading, error)
}

// Config configures the polling loop.
type Config struct {
	Interval     time.Duration
	Backoff      backoff.Config
	Quantum      time.Duration
	FallbackWait time.Duration
	LogErrors    bool
	Logger       *slog.Logger
	Clock        Clock
}

// Status is a point-in-time copy of the loop's state for observers.
type Status struct {
	State string `json:"state"`
	backoff.Snapshot
	NextWakeAt    time.Time  `json:"nextWakeAt"`
	LastAttemptAt *time.Time `json:"lastAttemptAt"`
	LastAttemptID string     `json:"lastAttemptId,omitempty"`
	LastErrorKind string     `json:"lastErrorKind,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Scheduler drives fetch cycles forever: on the regular interval after a
// success, on the backoff schedule after a failure, until its context ends.
type Scheduler struct {
	collector Collector
	cfg       Config
	clock     Clock
	logger    *slog.Logger

	// retry is only touched by the loop goroutine.
	retry *backoff.State

	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Scheduler.
func New(collector Collector, cfg Config) (*Scheduler, error) {
	if collector == nil {
		return nil, errors.New("scheduler: collector is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", cfg.Interval)
	}
	if err := cfg.Backoff.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.FallbackWait <= 0 {
		cfg.FallbackWait = DefaultFallbackWait
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	retry := backoff.New(cfg.Backoff)
	return &Scheduler{
		collector: collector,
		cfg:       cfg,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		retry:     retry,
		status: Status{
			State:    StateIdle.String(),
			Snapshot: retry.Snapshot(),
		},
	}, nil
}

// Start runs the loop in a background goroutine until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)

	return nil
}

// Stop requests shutdown and waits up to timeout for the loop to exit.
// A loop that does not exit in time is reported, not forced.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		s.logger.Warn("scheduler: collection loop did not shut down cleanly", "timeout", timeout)
		return ErrStopTimeout
	}
}

// Status returns a copy of the current loop status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run executes the polling loop in the calling goroutine until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler: collection loop started",
		"interval", s.cfg.Interval, "retry_base", s.cfg.Backoff.Base, "retry_max", s.cfg.Backoff.Max)

	// First attempt happens immediately.
	wake := s.clock.Now()
	s.setState(StateWaitingForInterval, wake)

	for s.sleepUntil(ctx, wake) {
		wake = s.step(ctx)
	}

	s.setState(StateShutdownRequested, time.Time{})
	s.logger.Info("scheduler: collection loop stopped")
}

// sleepUntil blocks until wake, in slices of at most one quantum.
// It returns false once ctx is done.
func (s *Scheduler) sleepUntil(ctx context.Context, wake time.Time) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		remaining := wake.Sub(s.clock.Now())
		if remaining <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(min(remaining, s.cfg.Quantum)):
		}
	}
}

// step runs one attempt and returns the next wake time. It never panics.
func (s *Scheduler) step(ctx context.Context) (wake time.Time) {
	defer func() {
		if r := recover(); r != nil {
			wake = s.clock.Now().Add(s.cfg.FallbackWait)
			s.logger.Error("scheduler: unexpected error in collection loop", "err", fmt.Sprint(r), "retry_in", s.cfg.FallbackWait)
			s.setState(StateWaitingForBackoff, wake)
		}
	}()

	attemptID := uuid.NewString()
	s.beginAttempt(attemptID)

	_, err := s.attempt(ctx, attemptID)
	now := s.clock.Now()

	// An attempt cut short by shutdown is not a failure.
	if err != nil && ctx.Err() != nil {
		s.logger.Debug("scheduler: attempt interrupted by shutdown", "attempt_id", attemptID)
		s.setState(StateShutdownRequested, time.Time{})
		return now
	}

	if err == nil {
		if failures := s.retry.ConsecutiveFailures(); failures > 0 {
			s.logger.Info("scheduler: connection restored", "failures", failures)
		}
		s.retry.OnSuccess(now)
		wake = now.Add(s.cfg.Interval)

		metrics.ConsecutiveFailures.Set(0)
		s.finishAttempt(StateWaitingForInterval, wake, nil)
		return wake
	}

	wait := s.retry.OnFailure(now)
	wake = s.retry.NextAttemptAt()

	metrics.ConsecutiveFailures.Set(float64(s.retry.ConsecutiveFailures()))
	metrics.RetryWaitSeconds.Set(wait.Seconds())

	if s.cfg.LogErrors {
		s.logger.Warn("scheduler: fetch failed, backing off",
			"attempt_id", attemptID,
			"failure", s.retry.ConsecutiveFailures(),
			"kind", airquality.KindOf(err),
			"retry_in", wait,
		)
	}

	s.finishAttempt(StateWaitingForBackoff, wake, err)
	return wake
}

// attempt runs the collector, converting a panic into an internal fault.
func (s *Scheduler) attempt(ctx context.Context, attemptID string) (r airquality.Reading, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = airquality.InternalFault("panic", fmt.Errorf("%v", rec))
			metrics.FetchAttempts.WithLabelValues("failure").Inc()
			metrics.FetchFailures.WithLabelValues(string(airquality.KindInternal), "panic").Inc()
			s.logger.Error("scheduler: fault during fetch cycle", "attempt_id", attemptID, "err", err)
		}
	}()

	s.logger.Debug("scheduler: attempting to collect air quality data", "attempt_id", attemptID)
	return s.collector.FetchAndStore(ctx)
}

func (s *Scheduler) setState(state State, wake time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state.String()
	s.status.NextWakeAt = wake
}

func (s *Scheduler) beginAttempt(attemptID string) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = StateAttempting.String()
	s.status.LastAttemptAt = &now
	s.status.LastAttemptID = attemptID
}

func (s *Scheduler) finishAttempt(state State, wake time.Time, err error) {
	snap := s.retry.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state.String()
	s.status.NextWakeAt = wake
	s.status.Snapshot = snap
	if err != nil {
		s.status.LastErrorKind = string(airquality.KindOf(err))
		s.status.LastError = err.Error()
	} else {
		s.status.LastErrorKind = ""
		s.status.LastError = ""
	}
}
