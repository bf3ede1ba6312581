// Package voting assembles a voter's assigned submissions and records their votes.
// Everything it loads is cached under the "voting" namespace, which the countdown
// engine drops when voting opens.
package voting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
	"github.com/mcdev12/designjam/go/internal/querycache"
)

// Namespace is the cache namespace for all voting data.
const Namespace = "voting"

// maxParallelFetches bounds concurrent submission requests.
const maxParallelFetches = 4

// DefaultCaller scopes data loaded with the service's own token.
const DefaultCaller = "default"

// Keys builds the cache keys used by the service. Assignments and votes belong to a
// caller; submissions are shared.
var Keys = struct {
	All         func() querycache.Key
	Caller      func(caller string) querycache.Key
	Assignments func(caller string) querycache.Key
	MyVotes     func(caller string) querycache.Key
	Submission  func(id int) querycache.Key
}{
	All:         func() querycache.Key { return querycache.NewKey(Namespace) },
	Caller:      func(caller string) querycache.Key { return querycache.NewKey(Namespace, "caller", caller) },
	Assignments: func(caller string) querycache.Key { return querycache.NewKey(Namespace, "caller", caller, "assignments") },
	MyVotes:     func(caller string) querycache.Key { return querycache.NewKey(Namespace, "caller", caller, "myVotes") },
	Submission:  func(id int) querycache.Key { return querycache.NewKey(Namespace, "submission", strconv.Itoa(id)) },
}

// CallerOf identifies the caller whose token ctx carries, without keeping the token
// itself in cache keys.
func CallerOf(ctx context.Context) string {
	token, ok := clients.TokenFrom(ctx)
	if !ok {
		return DefaultCaller
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// API is the remote voting surface.
type API interface {
	MyAssignments(ctx context.Context) ([]models.VoteAssignment, error)
	MyVotes(ctx context.Context) ([]models.Vote, error)
	Submission(ctx context.Context, id int) (models.Submission, error)
	SubmitVote(ctx context.Context, params models.VoteParams) (models.Vote, error)
}

type Service struct {
	api   API
	cache *querycache.Cache
}

func NewService(api API, cache *querycache.Cache) *Service {
	return &Service{api: api, cache: cache}
}

// Assignments returns the caller's vote assignments.
func (s *Service) Assignments(ctx context.Context) ([]models.VoteAssignment, error) {
	return querycache.Get(ctx, s.cache, Keys.Assignments(CallerOf(ctx)), s.api.MyAssignments)
}

// MyVotes returns the caller's existing votes.
func (s *Service) MyVotes(ctx context.Context) ([]models.Vote, error) {
	return querycache.Get(ctx, s.cache, Keys.MyVotes(CallerOf(ctx)), s.api.MyVotes)
}

// Submission returns one submission.
func (s *Service) Submission(ctx context.Context, id int) (models.Submission, error) {
	return querycache.Get(ctx, s.cache, Keys.Submission(id), func(ctx context.Context) (models.Submission, error) {
		return s.api.Submission(ctx, id)
	})
}

// AssignedSubmissions joins every assignment with its submission and the caller's
// existing vote for it, preserving assignment order. Assignments whose submission no
// longer exists are skipped.
func (s *Service) AssignedSubmissions(ctx context.Context) ([]models.AssignedSubmission, error) {
	var (
		assignments []models.VoteAssignment
		votes       []models.Vote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = s.Assignments(gctx)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		votes, err = s.MyVotes(gctx)
		if err != nil {
			return fmt.Errorf("load votes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(assignments) == 0 {
		return []models.AssignedSubmission{}, nil
	}

	submissions := make([]*models.Submission, len(assignments))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, a := range assignments {
		g.Go(func() error {
			sub, err := s.Submission(gctx, a.SubmissionID)
			if errors.Is(err, competition.ErrNotFound) {
				log.Warn().Int("submission_id", a.SubmissionID).Msg("assigned submission not found, skipping")
				return nil
			}
			if err != nil {
				return fmt.Errorf("load submission %d: %w", a.SubmissionID, err)
			}
			submissions[i] = &sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int]models.Vote, len(votes))
	for _, v := range votes {
		byID[v.SubmissionID] = v
	}

	out := make([]models.AssignedSubmission, 0, len(assignments))
	for i, a := range assignments {
		if submissions[i] == nil {
			continue
		}
		item := models.AssignedSubmission{Assignment: a, Submission: *submissions[i]}
		if v, ok := byID[a.SubmissionID]; ok {
			item.ExistingVote = &v
		}
		out = append(out, item)
	}
	return out, nil
}

// SubmitVote posts a vote and drops the cached votes so the next read sees it.
func (s *Service) SubmitVote(ctx context.Context, params models.VoteParams) (models.Vote, error) {
	vote, err := s.api.SubmitVote(ctx, params)
	if err != nil {
		return models.Vote{}, err
	}

	s.cache.InvalidateKey(Keys.MyVotes(CallerOf(ctx)))

	log.Info().
		Int("submission_id", params.SubmissionID).
		Int("vote_id", vote.ID).
		Msg("vote submitted")

	return vote, nil
}
