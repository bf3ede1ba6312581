package competition_client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
)

// StatusResponse is the raw competition status payload. Timestamps stay strings so a
// missing boundary can be told apart from a zero one.
type StatusResponse struct {
	SubmissionsOpenAt  *string `json:"submissions_open_at"`
	SubmissionsCloseAt *string `json:"submissions_close_at"`
	VotingOpenAt       *string `json:"voting_open_at"`
	VotingCloseAt      *string `json:"voting_close_at"`
	ShowLeaderboard    bool    `json:"show_leaderboard"`
}

// FetchCompetitionStatus loads the competition boundaries. Transport failures, non-2xx
// answers and undecodable bodies return a ConfigFetchError; missing or unparseable
// timestamps return a ConfigValidationError.
func (c *CompetitionClient) FetchCompetitionStatus(ctx context.Context) (models.CompetitionConfig, error) {
	const op = "get competition status"

	body, err := c.Get(ctx, StatusEndpoint)
	if err != nil {
		return models.CompetitionConfig{}, &competition.ConfigFetchError{Op: op, StatusCode: clients.StatusCode(err), Err: err}
	}

	var response StatusResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return models.CompetitionConfig{}, &competition.ConfigFetchError{
			Op:  op,
			Err: fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}

	return response.Config()
}

// Config converts the payload into a CompetitionConfig. Ordering is not checked here.
func (r StatusResponse) Config() (models.CompetitionConfig, error) {
	var cfg models.CompetitionConfig
	var err error

	if cfg.SubmissionsOpenAt, err = requiredTimestamp("submissions_open_at", r.SubmissionsOpenAt); err != nil {
		return models.CompetitionConfig{}, err
	}
	if cfg.SubmissionsCloseAt, err = requiredTimestamp("submissions_close_at", r.SubmissionsCloseAt); err != nil {
		return models.CompetitionConfig{}, err
	}
	if cfg.VotingCloseAt, err = requiredTimestamp("voting_close_at", r.VotingCloseAt); err != nil {
		return models.CompetitionConfig{}, err
	}
	if r.VotingOpenAt != nil && *r.VotingOpenAt != "" {
		votingOpen, err := parseTimestamp("voting_open_at", *r.VotingOpenAt)
		if err != nil {
			return models.CompetitionConfig{}, err
		}
		cfg.VotingOpenAt = &votingOpen
	}
	cfg.ShowLeaderboard = r.ShowLeaderboard

	return cfg, nil
}

func requiredTimestamp(field string, value *string) (time.Time, error) {
	if value == nil || *value == "" {
		return time.Time{}, &competition.ConfigValidationError{Field: field, Reason: "missing"}
	}
	return parseTimestamp(field, *value)
}

func parseTimestamp(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &competition.ConfigValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%q is not an ISO-8601 timestamp", value),
		}
	}
	return t.UTC(), nil
}
