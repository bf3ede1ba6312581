package countdown

import (
	"time"

	"github.com/mcdev12/designjam/go/internal/models"
)

// Status is the engine state consumers branch on before looking at a result.
type Status string

const (
	// StatusLoading means no config has been fetched yet.
	StatusLoading Status = "loading"
	// StatusReady means Result holds the countdown for the current tick.
	StatusReady Status = "ready"
	// StatusUnavailable means the config could not be fetched.
	StatusUnavailable Status = "unavailable"
	// StatusInvalid means the server sent boundaries that are missing or out of order.
	StatusInvalid Status = "invalid"
)

// Snapshot is what the engine publishes every tick. It is never mutated after publishing.
type Snapshot struct {
	Status          Status                  `json:"status"`
	Result          *models.CountdownResult `json:"result,omitempty"`
	ShowLeaderboard bool                    `json:"show_leaderboard"`
	Sequence        uint64                  `json:"sequence"`
	SampledAt       time.Time               `json:"sampled_at"`
	Err             error                   `json:"-"`
	Error           string                  `json:"error,omitempty"`
}

// Ready reports whether the snapshot carries a countdown result.
func (s Snapshot) Ready() bool {
	return s.Status == StatusReady && s.Result != nil
}

// Phase returns the resolved phase, or an empty Phase if the snapshot is not ready.
func (s Snapshot) Phase() models.Phase {
	if !s.Ready() {
		return ""
	}
	return s.Result.Phase
}

// Timer renders the countdown as HH:MM:SS, or the loading placeholder when not ready.
func (s Snapshot) Timer() string {
	if !s.Ready() {
		return LoadingPlaceholder
	}
	return FormatCountdown(s.Result.Hours, s.Result.Minutes, s.Result.Seconds)
}

func loadingSnapshot() *Snapshot {
	return &Snapshot{Status: StatusLoading}
}
