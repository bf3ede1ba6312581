package competition_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
)

// Scores returns the published leaderboard. The API answers 404 or 403 until the
// organisers reveal it; both map to ErrLeaderboardHidden.
func (c *CompetitionClient) Scores(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	if err := c.GetJSON(ctx, ScoresEndpoint, &entries); err != nil {
		switch clients.StatusCode(err) {
		case http.StatusNotFound, http.StatusForbidden:
			return nil, competition.ErrLeaderboardHidden
		}
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	return entries, nil
}
