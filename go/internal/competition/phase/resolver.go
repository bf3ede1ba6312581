// Package phase maps a competition config and an instant to the active phase and its countdown.
//
// Boundaries are half-open: an instant equal to a boundary already belongs to the later
// phase. The one exception is the implicit voting-open boundary. When the server omits
// voting_open_at, the submissions close instant itself is reported as waiting_for_voting
// with a zero countdown, and voting opens on the next instant.
package phase

import (
	"time"

	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
)

// DefaultLabels are the headings shown above each phase's countdown.
var DefaultLabels = map[models.Phase]string{
	models.PhaseWaitingForSubmissions: "Submissions open in",
	models.PhaseSubmissionsOpen:       "Submissions close in",
	models.PhaseWaitingForVoting:      "Voting begins in",
	models.PhaseVotingOpen:            "Voting ends in",
	models.PhaseCompetitionOver:       "Competition has ended!",
}

// Resolver derives countdown results. The zero value uses DefaultLabels.
type Resolver struct {
	Labels map[models.Phase]string
}

// NewResolver returns a resolver whose labels override DefaultLabels per phase.
func NewResolver(overrides map[models.Phase]string) Resolver {
	labels := make(map[models.Phase]string, len(DefaultLabels))
	for p, l := range DefaultLabels {
		labels[p] = l
	}
	for p, l := range overrides {
		if p.Valid() && l != "" {
			labels[p] = l
		}
	}
	return Resolver{Labels: labels}
}

// Resolve derives the result for cfg at now using DefaultLabels.
func Resolve(cfg models.CompetitionConfig, now time.Time) (models.CountdownResult, error) {
	return Resolver{}.Resolve(cfg, now)
}

// Resolve derives the phase, target and remaining time for cfg at now.
// It has no side effects; identical inputs always produce identical results.
func (r Resolver) Resolve(cfg models.CompetitionConfig, now time.Time) (models.CountdownResult, error) {
	if err := Validate(cfg); err != nil {
		return models.CountdownResult{}, err
	}

	p, target := locate(cfg, now)
	result := models.CountdownResult{
		Phase: p,
		Label: r.label(p),
	}

	if target == nil {
		result.IsExpired = true
		return result, nil
	}

	t := *target
	result.Target = &t

	remaining := t.Sub(now)
	if remaining <= 0 {
		result.IsExpired = true
		return result, nil
	}

	result.Remaining = remaining
	result.Hours, result.Minutes, result.Seconds = Decompose(remaining)
	return result, nil
}

// Decompose splits d into whole hours, minutes and seconds, truncating any fraction.
// Negative durations decompose to zero.
func Decompose(d time.Duration) (hours, minutes, seconds uint32) {
	if d <= 0 {
		return 0, 0, 0
	}
	total := int64(d / time.Second)
	return uint32(total / 3600), uint32((total % 3600) / 60), uint32(total % 60)
}

// Validate checks that every boundary is set and that they are in time order.
func Validate(cfg models.CompetitionConfig) error {
	if cfg.SubmissionsOpenAt.IsZero() {
		return &competition.ConfigValidationError{Field: "submissions_open_at", Reason: "missing"}
	}
	if cfg.SubmissionsCloseAt.IsZero() {
		return &competition.ConfigValidationError{Field: "submissions_close_at", Reason: "missing"}
	}
	if cfg.VotingCloseAt.IsZero() {
		return &competition.ConfigValidationError{Field: "voting_close_at", Reason: "missing"}
	}
	if cfg.VotingOpenAt != nil && cfg.VotingOpenAt.IsZero() {
		return &competition.ConfigValidationError{Field: "voting_open_at", Reason: "zero timestamp"}
	}

	if cfg.SubmissionsCloseAt.Before(cfg.SubmissionsOpenAt) {
		return &competition.ConfigValidationError{Field: "submissions_close_at", Reason: "before submissions_open_at"}
	}
	votingOpen := cfg.VotingOpensAt()
	if votingOpen.Before(cfg.SubmissionsCloseAt) {
		return &competition.ConfigValidationError{Field: "voting_open_at", Reason: "before submissions_close_at"}
	}
	if cfg.VotingCloseAt.Before(votingOpen) {
		return &competition.ConfigValidationError{Field: "voting_close_at", Reason: "before voting opens"}
	}
	return nil
}

// locate returns the active phase and its closing boundary; the boundary is nil once
// the competition is over.
func locate(cfg models.CompetitionConfig, now time.Time) (models.Phase, *time.Time) {
	switch {
	case now.Before(cfg.SubmissionsOpenAt):
		return models.PhaseWaitingForSubmissions, &cfg.SubmissionsOpenAt
	case now.Before(cfg.SubmissionsCloseAt):
		return models.PhaseSubmissionsOpen, &cfg.SubmissionsCloseAt
	case !now.Before(cfg.VotingCloseAt):
		return models.PhaseCompetitionOver, nil
	}

	if !cfg.HasExplicitVotingOpen() && now.Equal(cfg.SubmissionsCloseAt) {
		return models.PhaseWaitingForVoting, &cfg.SubmissionsCloseAt
	}

	votingOpen := cfg.VotingOpensAt()
	if now.Before(votingOpen) {
		return models.PhaseWaitingForVoting, &votingOpen
	}
	return models.PhaseVotingOpen, &cfg.VotingCloseAt
}

func (r Resolver) label(p models.Phase) string {
	if l, ok := r.Labels[p]; ok {
		return l
	}
	return DefaultLabels[p]
}
