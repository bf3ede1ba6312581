package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/competition/phase"
	"github.com/mcdev12/designjam/go/internal/models"
)

// loopState is owned by the loop goroutine and never shared.
type loopState struct {
	config         *models.CompetitionConfig
	status         Status
	err            error
	lastPhase      models.Phase
	lastFetchAt    time.Time
	fetching       bool
	refreshPending bool
	staleFor       time.Time
	sequence       uint64

	invalidations sync.WaitGroup
}

type fetchResult struct {
	config models.CompetitionConfig
	err    error
	reason string
}

// run is the tick loop. Ticks, fetch completions and refresh requests are handled one at
// a time on this goroutine, so a tick always finishes publishing before the next starts.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	st := &loopState{status: StatusLoading}
	defer close(done)
	defer st.invalidations.Wait()

	log.Info().
		Str("instance", e.instanceID).
		Dur("tick_interval", e.sampler.Interval()).
		Msg("countdown engine started")

	ticker := e.sampler.NewTicker()
	defer ticker.Stop()

	results := make(chan fetchResult, 1)

	e.startFetch(ctx, st, results, "initial")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", e.instanceID).Msg("countdown engine stopped")
			return
		case res := <-results:
			if ctx.Err() != nil {
				continue
			}
			e.applyFetch(st, res)
			if st.refreshPending {
				e.startFetch(ctx, st, results, "refresh")
			}
			e.tick(ctx, st, results)
		case <-ticker.Chan():
			if ctx.Err() != nil {
				continue
			}
			e.tick(ctx, st, results)
		case <-e.refreshCh:
			e.startFetch(ctx, st, results, "refresh")
		}
	}
}

// tick samples the clock, re-derives the countdown, fires transition side effects and
// decides whether the cached config needs a refetch.
func (e *Engine) tick(ctx context.Context, st *loopState, results chan fetchResult) {
	now := e.sampler.Sample()
	st.sequence++

	if st.config == nil {
		snap := &Snapshot{Status: st.status, Sequence: st.sequence, SampledAt: now, Err: st.err}
		if st.err != nil {
			snap.Error = st.err.Error()
		}
		e.publish(ctx, snap)

		if st.status == StatusUnavailable && e.config.RefreshInterval > 0 && now.Sub(st.lastFetchAt) >= e.config.RefreshInterval {
			e.startFetch(ctx, st, results, "retry_unavailable")
		}
		return
	}

	result, err := e.resolver.Resolve(*st.config, now)
	if err != nil {
		// Configs are validated on fetch; this only guards against a resolver/validator mismatch.
		log.Error().Err(err).Str("instance", e.instanceID).Msg("failed to resolve countdown")
		e.publish(ctx, &Snapshot{Status: StatusInvalid, Sequence: st.sequence, SampledAt: now, Err: err, Error: err.Error()})
		return
	}

	if st.lastPhase != "" && result.Phase != st.lastPhase {
		e.onTransition(ctx, st, st.lastPhase, result.Phase, now, results)
	}
	st.lastPhase = result.Phase

	log.Debug().
		Str("phase", result.Phase.String()).
		Uint32("hours", result.Hours).
		Uint32("minutes", result.Minutes).
		Uint32("seconds", result.Seconds).
		Msg("countdown tick")

	e.publish(ctx, &Snapshot{
		Status:          StatusReady,
		Result:          &result,
		ShowLeaderboard: st.config.ShowLeaderboard,
		Sequence:        st.sequence,
		SampledAt:       now,
	})

	switch {
	case result.IsExpired && result.Target != nil:
		// A non-final phase whose boundary has passed means the cached config is stale.
		if !st.staleFor.Equal(*result.Target) {
			st.staleFor = *result.Target
			e.startFetch(ctx, st, results, "stale")
		}
	case result.Phase == models.PhaseCompetitionOver && !st.config.ShowLeaderboard &&
		e.config.LeaderboardPollInterval > 0 && now.Sub(st.lastFetchAt) >= e.config.LeaderboardPollInterval:
		e.startFetch(ctx, st, results, "leaderboard_poll")
	case e.config.RefreshInterval > 0 && now.Sub(st.lastFetchAt) >= e.config.RefreshInterval:
		e.startFetch(ctx, st, results, "periodic")
	}
}

// onTransition runs once per phase edge. Entering voting_open tells the voting
// subsystem to drop its cached assignments and votes.
func (e *Engine) onTransition(ctx context.Context, st *loopState, from, to models.Phase, now time.Time, results chan fetchResult) {
	evt := log.Info()
	if to.Before(from) {
		evt = log.Warn()
	}
	evt.Str("instance", e.instanceID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("competition phase transition")

	if to == models.PhaseVotingOpen && e.invalidator != nil {
		invCtx := competition.WithTransition(ctx, competition.Transition{From: from, To: to, At: now})
		st.invalidations.Add(1)
		go func(inv Invalidator) {
			defer st.invalidations.Done()
			if err := inv.Invalidate(invCtx, VotingNamespace); err != nil {
				log.Error().Err(err).Str("namespace", VotingNamespace).Msg("failed to invalidate voting data")
				return
			}
			log.Info().Str("namespace", VotingNamespace).Msg("voting data invalidated")
		}(e.invalidator)
	}

	e.startFetch(ctx, st, results, "transition")
}

// applyFetch stores a fetched config. A failed refetch keeps the previously cached
// config; only a session without any good config reports unavailable or invalid.
func (e *Engine) applyFetch(st *loopState, res fetchResult) {
	st.fetching = false
	st.lastFetchAt = e.sampler.Sample()

	if res.err != nil {
		if st.config != nil {
			log.Warn().Err(res.err).Str("reason", res.reason).Msg("config refetch failed, keeping cached config")
			return
		}
		st.err = res.err
		st.status = StatusUnavailable
		if competition.IsValidation(res.err) {
			st.status = StatusInvalid
		}
		log.Error().
			Err(res.err).
			Str("code", string(competition.CodeOf(res.err))).
			Str("status", string(st.status)).
			Msg("competition config unavailable")
		return
	}

	if st.config != nil && !st.config.Equal(res.config) {
		log.Info().Str("reason", res.reason).Msg("competition config changed")
	}
	cfg := res.config
	st.config = &cfg
	st.status = StatusReady
	st.err = nil
}

// startFetch launches a config fetch unless one is already in flight. The result is
// delivered back to the loop; if the loop is torn down first it is dropped. A refresh
// requested while a fetch is in flight runs after that fetch completes.
func (e *Engine) startFetch(ctx context.Context, st *loopState, results chan<- fetchResult, reason string) {
	if st.fetching {
		if reason == "refresh" {
			st.refreshPending = true
		}
		return
	}
	st.fetching = true
	st.refreshPending = false

	log.Debug().Str("reason", reason).Msg("fetching competition config")

	go func() {
		cfg, err := e.fetch(ctx)
		select {
		case results <- fetchResult{config: cfg, err: err, reason: reason}:
		case <-ctx.Done():
		}
	}()
}

// fetch loads and validates the config, retrying transport failures MaxRetries times.
// Validation failures are not retried.
func (e *Engine) fetch(ctx context.Context) (models.CompetitionConfig, error) {
	op := func() (models.CompetitionConfig, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
		defer cancel()

		cfg, err := e.source.FetchCompetitionStatus(fetchCtx)
		if err != nil {
			if competition.IsValidation(err) {
				return cfg, backoff.Permanent(err)
			}
			return cfg, err
		}
		if err := phase.Validate(cfg); err != nil {
			return cfg, backoff.Permanent(err)
		}
		return cfg, nil
	}

	cfg, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.config.RetryDelay)),
		backoff.WithMaxTries(e.config.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("competition config fetch failed, retrying")
		}),
	)
	if err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("fetch competition config: %w", err)
	}
	return cfg, nil
}
