// Package leaderboard loads the published scores once the organisers reveal them.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
	"github.com/mcdev12/designjam/go/internal/querycache"
)

const Namespace = "leaderboard"

const maxParallelFetches = 4

var (
	listKey = querycache.NewKey(Namespace, "list")
)

func submissionKey(id int) querycache.Key {
	return querycache.NewKey(Namespace, "submission", strconv.Itoa(id))
}

type API interface {
	Scores(ctx context.Context) ([]models.LeaderboardEntry, error)
	Submission(ctx context.Context, id int) (models.Submission, error)
}

type Service struct {
	api   API
	cache *querycache.Cache
}

func NewService(api API, cache *querycache.Cache) *Service {
	return &Service{api: api, cache: cache}
}

// Entries returns the ranked leaderboard. show is the competition's show_leaderboard
// flag; when it is false nothing is requested and ErrLeaderboardHidden is returned.
// Entries are ordered by final score, highest first; tied scores share a rank.
func (s *Service) Entries(ctx context.Context, show bool) ([]models.RankedEntry, error) {
	if !show {
		return nil, competition.ErrLeaderboardHidden
	}

	scores, err := querycache.Get(ctx, s.cache, listKey, s.api.Scores)
	if err != nil {
		return nil, err
	}

	submissions := make([]*models.Submission, len(scores))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, score := range scores {
		g.Go(func() error {
			sub, err := querycache.Get(gctx, s.cache, submissionKey(score.SubmissionID), func(ctx context.Context) (models.Submission, error) {
				return s.api.Submission(ctx, score.SubmissionID)
			})
			if errors.Is(err, competition.ErrNotFound) {
				log.Warn().Int("submission_id", score.SubmissionID).Msg("scored submission not found, skipping")
				return nil
			}
			if err != nil {
				return fmt.Errorf("load submission %d: %w", score.SubmissionID, err)
			}
			submissions[i] = &sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]models.RankedEntry, 0, len(scores))
	for i, score := range scores {
		if submissions[i] == nil {
			continue
		}
		entries = append(entries, models.RankedEntry{Score: score, Submission: *submissions[i]})
	}

	Rank(entries)
	return entries, nil
}

// Rank sorts entries by final score descending and assigns competition ranks
// (1, 2, 2, 4). Ties keep submission ID order.
func Rank(entries []models.RankedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Score, entries[j].Score
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.SubmissionID < b.SubmissionID
	})

	for i := range entries {
		if i > 0 && entries[i].Score.FinalScore == entries[i-1].Score.FinalScore {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// Reset drops the cached leaderboard.
func (s *Service) Reset() {
	s.cache.InvalidateKey(querycache.NewKey(Namespace))
}
