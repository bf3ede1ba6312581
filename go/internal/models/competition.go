package models

import (
	"time"
)

// Phase defines the stage a competition is in at a given instant.
type Phase string

const (
	PhaseWaitingForSubmissions Phase = "waiting_for_submissions"
	PhaseSubmissionsOpen       Phase = "submissions_open"
	PhaseWaitingForVoting      Phase = "waiting_for_voting"
	PhaseVotingOpen            Phase = "voting_open"
	PhaseCompetitionOver       Phase = "competition_over"
)

// Phases lists every phase in time order.
var Phases = []Phase{
	PhaseWaitingForSubmissions,
	PhaseSubmissionsOpen,
	PhaseWaitingForVoting,
	PhaseVotingOpen,
	PhaseCompetitionOver,
}

func (p Phase) String() string {
	return string(p)
}

// Ordinal returns the position of the phase in time order, or -1 for an unknown phase.
func (p Phase) Ordinal() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// Before reports whether p comes strictly earlier than other.
func (p Phase) Before(other Phase) bool {
	return p.Ordinal() < other.Ordinal()
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p.Ordinal() >= 0
}

// CompetitionConfig holds the server-provided competition boundaries.
type CompetitionConfig struct {
	SubmissionsOpenAt  time.Time  `json:"submissions_open_at"`
	SubmissionsCloseAt time.Time  `json:"submissions_close_at"`
	VotingOpenAt       *time.Time `json:"voting_open_at,omitempty"` // defaults to SubmissionsCloseAt
	VotingCloseAt      time.Time  `json:"voting_close_at"`
	ShowLeaderboard    bool       `json:"show_leaderboard"`
}

// VotingOpensAt returns the voting-open boundary, falling back to the submissions close time.
func (c CompetitionConfig) VotingOpensAt() time.Time {
	if c.VotingOpenAt != nil {
		return *c.VotingOpenAt
	}
	return c.SubmissionsCloseAt
}

// HasExplicitVotingOpen reports whether the server sent a voting_open_at boundary.
func (c CompetitionConfig) HasExplicitVotingOpen() bool {
	return c.VotingOpenAt != nil
}

// Equal reports whether two configs carry the same boundaries and flags.
func (c CompetitionConfig) Equal(other CompetitionConfig) bool {
	if c.HasExplicitVotingOpen() != other.HasExplicitVotingOpen() {
		return false
	}
	return c.SubmissionsOpenAt.Equal(other.SubmissionsOpenAt) &&
		c.SubmissionsCloseAt.Equal(other.SubmissionsCloseAt) &&
		c.VotingOpensAt().Equal(other.VotingOpensAt()) &&
		c.VotingCloseAt.Equal(other.VotingCloseAt) &&
		c.ShowLeaderboard == other.ShowLeaderboard
}

// CountdownResult is the derived view of a config at one instant.
type CountdownResult struct {
	Phase     Phase         `json:"phase"`
	Target    *time.Time    `json:"target,omitempty"` // nil once the competition is over
	Remaining time.Duration `json:"-"`
	Hours     uint32        `json:"hours"`
	Minutes   uint32        `json:"minutes"`
	Seconds   uint32        `json:"seconds"`
	IsExpired bool          `json:"is_expired"`
	Label     string        `json:"label"`
}

// TotalSeconds returns the whole seconds represented by the hours/minutes/seconds split.
func (r CountdownResult) TotalSeconds() int64 {
	return int64(r.Hours)*3600 + int64(r.Minutes)*60 + int64(r.Seconds)
}
