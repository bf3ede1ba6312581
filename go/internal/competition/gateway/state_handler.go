package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/clients/competition_client"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/competition/view"
	"github.com/mcdev12/designjam/go/internal/models"
)

// Voting is the voting surface served over REST.
type Voting interface {
	Assignments(ctx context.Context) ([]models.VoteAssignment, error)
	AssignedSubmissions(ctx context.Context) ([]models.AssignedSubmission, error)
	SubmitVote(ctx context.Context, params models.VoteParams) (models.Vote, error)
}

// Leaderboard is the leaderboard surface served over REST.
type Leaderboard interface {
	Entries(ctx context.Context, show bool) ([]models.RankedEntry, error)
}

// StateHandler serves the current countdown and the phase-gated competition data.
type StateHandler struct {
	engine      Countdown
	voting      Voting
	leaderboard Leaderboard
	connections *ConnectionManager
	natsUp      func() bool
}

func NewStateHandler(engine Countdown, voting Voting, leaderboard Leaderboard, cm *ConnectionManager, natsUp func() bool) *StateHandler {
	return &StateHandler{
		engine:      engine,
		voting:      voting,
		leaderboard: leaderboard,
		connections: cm,
		natsUp:      natsUp,
	}
}

// HandleGetCountdown handles GET /api/countdown
func (h *StateHandler) HandleGetCountdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewCountdownPayload(h.engine.Snapshot()))
}

// HandleGetView handles GET /api/view. Inside the voting window the caller's
// assignments decide between the gallery and the not-eligible screen; an anonymous
// caller always gets the latter.
func (h *StateHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	v := view.Select(h.engine.Snapshot())
	if v.Kind == view.KindVotingGallery {
		ctx, ok := callerContext(r)
		if !ok {
			writeJSON(w, http.StatusOK, v.ForVoter(0))
			return
		}
		assignments, err := h.voting.Assignments(ctx)
		switch {
		case errors.Is(err, competition.ErrUnauthenticated):
			v = v.ForVoter(0)
		case err != nil:
			log.Error().Err(err).Msg("failed to load vote assignments")
			writeError(w, http.StatusBadGateway, "failed to load vote assignments")
			return
		default:
			v = v.ForVoter(len(assignments))
		}
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleRefresh handles POST /api/countdown/refresh
func (h *StateHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.engine.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

// HandleGetAssignments handles GET /api/voting/assignments
func (h *StateHandler) HandleGetAssignments(w http.ResponseWriter, r *http.Request) {
	if !h.inPhase(w, models.PhaseVotingOpen) {
		return
	}
	ctx, ok := callerContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, competition.ErrUnauthenticated.Error())
		return
	}
	items, err := h.voting.AssignedSubmissions(ctx)
	if err != nil {
		writeServiceError(w, err, "failed to load vote assignments")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleSubmitVote handles POST /api/voting/votes
func (h *StateHandler) HandleSubmitVote(w http.ResponseWriter, r *http.Request) {
	if !h.inPhase(w, models.PhaseVotingOpen) {
		return
	}
	ctx, ok := callerContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, competition.ErrUnauthenticated.Error())
		return
	}
	var params models.VoteParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid vote body")
		return
	}
	if err := competition_client.ValidateVote(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vote, err := h.voting.SubmitVote(ctx, params)
	if err != nil {
		writeServiceError(w, err, "failed to submit vote")
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

// HandleGetLeaderboard handles GET /api/leaderboard
func (h *StateHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	if !snap.Ready() {
		writeError(w, http.StatusServiceUnavailable, "competition status not loaded")
		return
	}
	entries, err := h.leaderboard.Entries(r.Context(), snap.ShowLeaderboard)
	if err != nil {
		writeServiceError(w, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleHealth handles GET /health. A lost NATS connection reports "degraded".
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.connections.Stats()
	body := map[string]any{
		"status":         "ok",
		"engine_running": stats.EngineRunning,
		"connections":    stats.TotalConnections,
		"countdown":      h.engine.Snapshot().Status,
	}
	if h.natsUp != nil {
		connected := h.natsUp()
		body["nats_connected"] = connected
		if !connected {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *StateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/countdown", h.HandleGetCountdown)
	mux.HandleFunc("POST /api/countdown/refresh", h.HandleRefresh)
	mux.HandleFunc("GET /api/view", h.HandleGetView)
	mux.HandleFunc("GET /api/voting/assignments", h.HandleGetAssignments)
	mux.HandleFunc("POST /api/voting/votes", h.HandleSubmitVote)
	mux.HandleFunc("GET /api/leaderboard", h.HandleGetLeaderboard)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

// callerContext carries the request's bearer token to the competition API. Voting
// data is always fetched as the caller, never with the gateway's own token.
func callerContext(r *http.Request) (context.Context, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get(clients.AuthorizationHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	return clients.WithToken(r.Context(), token), true
}

// inPhase writes 409 unless the countdown is ready and in phase.
func (h *StateHandler) inPhase(w http.ResponseWriter, phase models.Phase) bool {
	snap := h.engine.Snapshot()
	if snap.Status != countdown.StatusReady {
		writeError(w, http.StatusServiceUnavailable, "competition status not loaded")
		return false
	}
	if snap.Phase() != phase {
		writeError(w, http.StatusConflict, "competition is not in "+phase.String())
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, competition.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, competition.ErrInvalidVote):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, competition.ErrLeaderboardHidden):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, competition.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg(msg)
		writeError(w, http.StatusBadGateway, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
