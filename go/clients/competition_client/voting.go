package competition_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
)

// MyAssignments returns the submissions the caller has been asked to score.
func (c *CompetitionClient) MyAssignments(ctx context.Context) ([]models.VoteAssignment, error) {
	if !c.HasToken(ctx) {
		return nil, competition.ErrUnauthenticated
	}

	var assignments []models.VoteAssignment
	if err := c.GetJSON(ctx, AssignmentsEndpoint, &assignments); err != nil {
		return nil, fmt.Errorf("failed to get vote assignments: %w", err)
	}
	return assignments, nil
}

// MyVotes returns the caller's existing votes. Any failure yields an empty list, since
// a voter with no votes yet is not an error.
func (c *CompetitionClient) MyVotes(ctx context.Context) ([]models.Vote, error) {
	if !c.HasToken(ctx) {
		return nil, competition.ErrUnauthenticated
	}

	var votes []models.Vote
	if err := c.GetJSON(ctx, MyVotesEndpoint, &votes); err != nil {
		log.Debug().Err(err).Msg("could not load existing votes, treating as none")
		return []models.Vote{}, nil
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	return votes, nil
}

// Submission loads one submission by ID.
func (c *CompetitionClient) Submission(ctx context.Context, id int) (models.Submission, error) {
	var submission models.Submission
	if err := c.GetJSON(ctx, fmt.Sprintf(SubmissionEndpoint, id), &submission); err != nil {
		if clients.StatusCode(err) == http.StatusNotFound {
			return models.Submission{}, fmt.Errorf("submission %d: %w", id, competition.ErrNotFound)
		}
		return models.Submission{}, fmt.Errorf("failed to get submission %d: %w", id, err)
	}
	return submission, nil
}

// SubmitVote validates and posts a vote.
func (c *CompetitionClient) SubmitVote(ctx context.Context, params models.VoteParams) (models.Vote, error) {
	if !c.HasToken(ctx) {
		return models.Vote{}, competition.ErrUnauthenticated
	}
	if err := ValidateVote(params); err != nil {
		return models.Vote{}, err
	}

	var vote models.Vote
	if err := c.PostJSON(ctx, VotesEndpoint, params, &vote); err != nil {
		return models.Vote{}, fmt.Errorf("failed to submit vote: %w", err)
	}
	return vote, nil
}

// ValidateVote checks the submission ID and that every score is within MinScore..MaxScore.
func ValidateVote(params models.VoteParams) error {
	if params.SubmissionID <= 0 {
		return fmt.Errorf("%w: submission_id must be positive", competition.ErrInvalidVote)
	}

	scores := []struct {
		name  string
		value int
	}{
		{"problem_fit_score", params.ProblemFitScore},
		{"clarity_score", params.ClarityScore},
		{"style_interpretation_score", params.StyleInterpretationScore},
		{"originality_score", params.OriginalityScore},
		{"overall_quality_score", params.OverallQualityScore},
	}
	for _, s := range scores {
		if s.value < MinScore || s.value > MaxScore {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d",
				competition.ErrInvalidVote, s.name, MinScore, MaxScore, s.value)
		}
	}
	return nil
}
