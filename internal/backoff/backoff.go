// Package backoff tracks consecutive fetch failures and computes when the
// next attempt is allowed. It performs no I/O and never gives up: the wait
// grows geometrically until it reaches the configured maximum and stays there.
package backoff

import (
	"errors"
	"time"
)

// Config defines backoff behaviour.
type Config struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultConfig waits 10 minutes after the first failure, doubling up to 6 hours.
var DefaultConfig = Config{
	Base:       600 * time.Second,
	Max:        21600 * time.Second,
	Multiplier: 2.0,
}

var errInvalidConfig = errors.New("invalid backoff configuration")

// Validate reports whether the configuration yields a bounded, non-decreasing sequence.
func (c Config) Validate() error {
	if c.Base <= 0 || c.Max < c.Base || c.Multiplier < 1 {
		return errInvalidConfig
	}
	return nil
}

// State is the retry state of the polling scheduler. It has a single writer.
type State struct {
	cfg Config

	consecutiveFailures int
	currentWait         time.Duration
	nextAttemptAt       time.Time
	lastSuccessAt       time.Time
}

// New returns a State with no failures recorded.
func New(cfg Config) *State {
	return &State{
		cfg:         cfg,
		currentWait: cfg.Base,
	}
}

// OnSuccess resets the failure streak. NextAttemptAt is left for the
// scheduler, which schedules the next regular poll itself.
func (s *State) OnSuccess(now time.Time) {
	s.consecutiveFailures = 0
	s.currentWait = s.cfg.Base
	s.lastSuccessAt = now
}

// OnFailure records a failure and returns the wait before the next attempt.
// The clamp to Max applies both to the wait used now and to the grown value
// kept for the next failure.
func (s *State) OnFailure(now time.Time) time.Duration {
	s.consecutiveFailures++

	wait := min(s.currentWait, s.cfg.Max)
	s.nextAttemptAt = now.Add(wait)

	grown := time.Duration(float64(s.currentWait) * s.cfg.Multiplier)
	if grown < s.currentWait {
		// float overflow wrapped around
		grown = s.cfg.Max
	}
	s.currentWait = min(grown, s.cfg.Max)

	return wait
}

// ConsecutiveFailures returns the number of failures since the last success.
func (s *State) ConsecutiveFailures() int { return s.consecutiveFailures }

// CurrentWait returns the wait that the next failure will use.
func (s *State) CurrentWait() time.Duration { return s.currentWait }

// NextAttemptAt returns the earliest time a retry is allowed.
func (s *State) NextAttemptAt() time.Time { return s.nextAttemptAt }

// LastSuccessAt returns the time of the last success, or the zero time.
func (s *State) LastSuccessAt() time.Time { return s.lastSuccessAt }

// Snapshot is a copy of State for observers outside the scheduler goroutine.
type Snapshot struct {
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	CurrentWaitSeconds  float64    `json:"currentWaitSeconds"`
	NextAttemptAt       time.Time  `json:"nextAttemptAt"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt"`
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		ConsecutiveFailures: s.consecutiveFailures,
		CurrentWaitSeconds:  s.currentWait.Seconds(),
		NextAttemptAt:       s.nextAttemptAt,
	}
	if !s.lastSuccessAt.IsZero() {
		t := s.lastSuccessAt
		snap.LastSuccessAt = &t
	}
	return snap
}
