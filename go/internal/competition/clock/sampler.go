// Package clock samples wall-clock time at a fixed cadence and never lets samples run backwards.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/internal/competition"
)

// DefaultInterval is the tick cadence of the countdown.
const DefaultInterval = time.Second

// Sampler hands out non-decreasing time samples.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Sampler struct {
	clock    clockwork.Clock
	interval time.Duration

	mu        sync.Mutex
	last      time.Time
	anomalies int
}

// NewSampler creates a sampler ticking every interval; a non-positive interval uses DefaultInterval.
func NewSampler(clock clockwork.Clock, interval time.Duration) *Sampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{clock: clock, interval: interval}
}

// Interval returns the tick cadence.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// NewTicker starts a ticker at the sampler's cadence. The caller must Stop it.
func (s *Sampler) NewTicker() clockwork.Ticker {
	return s.clock.NewTicker(s.interval)
}

// Sample returns the current time, clamped so it is never earlier than a previous sample.
// A backward jump is logged and counted, never returned to the caller.
func (s *Sampler) Sample() time.Time {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && now.Before(s.last) {
		s.anomalies++
		anomaly := &competition.ClockAnomalyError{Previous: s.last, Observed: now}
		log.Warn().
			Err(anomaly).
			Str("code", string(anomaly.Code())).
			Time("previous", s.last).
			Time("observed", now).
			Msg("clock moved backwards, holding previous sample")
		return s.last
	}

	s.last = now
	return now
}

// Last returns the most recent sample, or the zero time if none was taken.
func (s *Sampler) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Anomalies returns how many backward samples were clamped.
func (s *Sampler) Anomalies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anomalies
}
