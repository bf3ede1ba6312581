// Package countdown runs the competition countdown: it caches the competition config,
// re-derives the phase once per tick and publishes the result to subscribers.
package countdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/internal/competition/clock"
	"github.com/mcdev12/designjam/go/internal/competition/phase"
	"github.com/mcdev12/designjam/go/internal/models"
)

// VotingNamespace keys every cached voting resource (assignments, prior votes).
const VotingNamespace = "voting"

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("countdown engine closed")

// ConfigSource fetches the competition boundaries.
type ConfigSource interface {
	FetchCompetitionStatus(ctx context.Context) (models.CompetitionConfig, error)
}

// Invalidator drops cached downstream data under a namespace.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string) error
}

// Config tunes the engine cadences.
type Config struct {
	TickInterval            time.Duration
	FetchTimeout            time.Duration
	RetryDelay              time.Duration
	MaxRetries              uint
	RefreshInterval         time.Duration // 0 disables periodic refetch
	LeaderboardPollInterval time.Duration // 0 disables polling for the leaderboard reveal
	Labels                  map[models.Phase]string
}

// DefaultConfig returns the production cadences.
func DefaultConfig() Config {
	return Config{
		TickInterval:            clock.DefaultInterval,
		FetchTimeout:            10 * time.Second,
		RetryDelay:              500 * time.Millisecond,
		MaxRetries:              1,
		LeaderboardPollInterval: time.Minute,
	}
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock swaps the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithInvalidator sets who is told to drop voting data when voting opens.
func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) {
		e.invalidator = inv
	}
}

// Subscription receives snapshots until it is stopped. Updates coalesce: a slow reader
// only ever sees the latest snapshot.
type Subscription struct {
	ID      uuid.UUID
	updates chan Snapshot
	release func() bool
}

// Updates returns the snapshot stream. It is closed when the subscription stops.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Engine owns the tick loop and the cached competition config.
type Engine struct {
	source      ConfigSource
	invalidator Invalidator
	clock       clockwork.Clock
	sampler     *clock.Sampler
	resolver    phase.Resolver
	config      Config
	instanceID  string

	snapshot  atomic.Pointer[Snapshot]
	refreshCh chan struct{}

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewEngine creates an idle engine. Nothing is fetched until Start.
func NewEngine(source ConfigSource, config Config, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	e := &Engine{
		source:     source,
		clock:      clockwork.NewRealClock(),
		resolver:   phase.NewResolver(config.Labels),
		config:     config,
		instanceID: uuid.New().String()[:8],
		refreshCh:  make(chan struct{}, 1),
		subs:       make(map[uuid.UUID]*Subscription),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sampler = clock.NewSampler(e.clock, config.TickInterval)
	e.snapshot.Store(loadingSnapshot())
	return e
}

// Start subscribes to snapshots, starting the tick loop if it is not running yet.
// The new subscription immediately receives the current snapshot and is stopped when
// ctx is cancelled.
func (e *Engine) Start(ctx context.Context) (*Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		ID:      uuid.New(),
		updates: make(chan Snapshot, 1),
	}
	sub.updates <- *e.snapshot.Load()
	e.subs[sub.ID] = sub
	sub.release = context.AfterFunc(ctx, func() { e.Stop(sub) })

	// The loop belongs to the engine, not to whichever subscriber started it.
	if e.cancel == nil {
		loopCtx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.done = make(chan struct{})
		go e.run(loopCtx, e.done)
	}

	log.Debug().
		Str("instance", e.instanceID).
		Str("subscription_id", sub.ID.String()).
		Int("subscribers", len(e.subs)).
		Msg("countdown subscription started")

	return sub, nil
}

// Stop releases a subscription. Releasing the last one tears the loop down and
// discards the cached config; Stop returns once the loop has exited.
func (e *Engine) Stop(sub *Subscription) {
	if sub == nil {
		return
	}

	e.mu.Lock()
	if _, ok := e.subs[sub.ID]; !ok {
		e.mu.Unlock()
		return
	}
	delete(e.subs, sub.ID)
	close(sub.updates)
	sub.release()

	var done chan struct{}
	if len(e.subs) == 0 {
		done = e.stopLoopLocked()
	}
	e.mu.Unlock()

	log.Debug().
		Str("instance", e.instanceID).
		Str("subscription_id", sub.ID.String()).
		Msg("countdown subscription stopped")

	if done != nil {
		<-done
	}
}

// Close stops every subscription and the loop. Start fails afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for id, sub := range e.subs {
		delete(e.subs, id)
		close(sub.updates)
		sub.release()
	}
	done := e.stopLoopLocked()
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Snapshot returns the latest published snapshot.
func (e *Engine) Snapshot() Snapshot {
	return *e.snapshot.Load()
}

// Refresh invalidates the cached config and schedules a refetch without pausing ticks.
func (e *Engine) Refresh() {
	select {
	case e.refreshCh <- struct{}{}:
	default:
	}
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

func (e *Engine) stopLoopLocked() chan struct{} {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	e.snapshot.Store(loadingSnapshot())
	done := e.done
	e.cancel = nil
	e.done = nil
	return done
}

// publish stores snap and hands it to every subscriber, replacing any unread snapshot.
// It is a no-op once ctx is cancelled, so a loop being torn down cannot overwrite state.
func (e *Engine) publish(ctx context.Context, snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	e.snapshot.Store(snap)

	for _, sub := range e.subs {
		select {
		case sub.updates <- *snap:
		default:
			select {
			case <-sub.updates:
			default:
			}
			select {
			case sub.updates <- *snap:
			default:
			}
		}
	}
}
