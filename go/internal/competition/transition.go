package competition

import (
	"context"
	"time"

	"github.com/mcdev12/designjam/go/internal/models"
)

// Transition is a phase edge observed by the countdown engine.
type Transition struct {
	From models.Phase
	To   models.Phase
	At   time.Time
}

type transitionKey struct{}

// WithTransition attaches the edge that caused downstream work to ctx.
func WithTransition(ctx context.Context, t Transition) context.Context {
	return context.WithValue(ctx, transitionKey{}, t)
}

// TransitionFrom returns the edge attached by WithTransition.
func TransitionFrom(ctx context.Context) (Transition, bool) {
	t, ok := ctx.Value(transitionKey{}).(Transition)
	return t, ok
}
