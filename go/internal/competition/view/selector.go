// Package view maps countdown snapshots to the screen the client should show.
package view

import (
	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/models"
)

// Kind names a screen.
type Kind string

const (
	KindLoading           Kind = "loading"
	KindUnavailable       Kind = "unavailable"
	KindInvalidConfig     Kind = "invalid_config"
	KindCountdown         Kind = "countdown"
	KindSubmissionsOpen   Kind = "submissions_open"
	KindSubmissionsClosed Kind = "submissions_closed"
	KindVotingGallery     Kind = "voting_gallery"
	KindVotingNotEligible Kind = "voting_not_eligible"
	KindLeaderboard       Kind = "leaderboard"
	KindResultsPending    Kind = "results_pending"
)

const (
	LoadingLabel     = "Loading..."
	UnavailableLabel = "Competition status unavailable"
	InvalidLabel     = "Competition schedule is misconfigured"
)

// View is everything a screen needs to render.
type View struct {
	Kind          Kind         `json:"kind"`
	Phase         models.Phase `json:"phase,omitempty"`
	Label         string       `json:"label"`
	Timer         string       `json:"timer"`
	TimeRemaining string       `json:"time_remaining,omitempty"`
	Sequence      uint64       `json:"sequence"`
}

// Select picks the view for a snapshot.
func Select(snap countdown.Snapshot) View {
	v := View{Timer: snap.Timer(), Sequence: snap.Sequence}

	switch snap.Status {
	case countdown.StatusUnavailable:
		v.Kind, v.Label = KindUnavailable, UnavailableLabel
		return v
	case countdown.StatusInvalid:
		v.Kind, v.Label = KindInvalidConfig, InvalidLabel
		return v
	}
	if !snap.Ready() {
		v.Kind, v.Label = KindLoading, LoadingLabel
		return v
	}

	res := snap.Result
	v.Phase = res.Phase
	v.Label = res.Label

	switch res.Phase {
	case models.PhaseSubmissionsOpen:
		v.Kind = KindSubmissionsOpen
		v.TimeRemaining = countdown.FormatTimeRemaining(res.Hours, res.Minutes)
	case models.PhaseWaitingForVoting:
		v.Kind = KindSubmissionsClosed
	case models.PhaseVotingOpen:
		v.Kind = KindVotingGallery
	case models.PhaseCompetitionOver:
		v.Kind = KindResultsPending
		if snap.ShowLeaderboard {
			v.Kind = KindLeaderboard
		}
	default:
		v.Kind = KindCountdown
	}
	return v
}

// ForVoter swaps the voting gallery for the not-eligible screen when the voter has
// no assignments. Other views are returned unchanged.
func (v View) ForVoter(assigned int) View {
	if v.Kind == KindVotingGallery && assigned == 0 {
		v.Kind = KindVotingNotEligible
	}
	return v
}
