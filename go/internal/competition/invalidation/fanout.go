package invalidation

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Fanout forwards every invalidation to each target in order. A failing target is
// logged and does not stop the others.
type Fanout []Invalidator

// NewFanout skips nil targets.
func NewFanout(targets ...Invalidator) Fanout {
	f := make(Fanout, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			f = append(f, t)
		}
	}
	return f
}

func (f Fanout) Invalidate(ctx context.Context, namespace string) error {
	for i, target := range f {
		if err := target.Invalidate(ctx, namespace); err != nil {
			log.Error().
				Err(err).
				Int("target", i).
				Str("namespace", namespace).
				Msg("invalidation target failed")
		}
	}
	return nil
}
