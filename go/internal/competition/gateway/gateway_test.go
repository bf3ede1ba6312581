package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/designjam/go/clients"
	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/competition/view"
	"github.com/mcdev12/designjam/go/internal/models"
)

var base = time.Date(2026, 1, 24, 18, 0, 0, 0, time.UTC)

type stubEngine struct {
	mu        sync.Mutex
	snap      countdown.Snapshot
	refreshed int
}

func (s *stubEngine) Start(context.Context) (*countdown.Subscription, error) {
	return nil, countdown.ErrClosed
}

func (s *stubEngine) Stop(*countdown.Subscription) {}

func (s *stubEngine) Snapshot() countdown.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubEngine) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed++
}

func (s *stubEngine) Running() bool { return true }

type MockVoting struct {
	mock.Mock
}

func (m *MockVoting) Assignments(ctx context.Context) ([]models.VoteAssignment, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.VoteAssignment), args.Error(1)
}

func (m *MockVoting) AssignedSubmissions(ctx context.Context) ([]models.AssignedSubmission, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.AssignedSubmission), args.Error(1)
}

func (m *MockVoting) SubmitVote(ctx context.Context, params models.VoteParams) (models.Vote, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(models.Vote), args.Error(1)
}

type MockLeaderboard struct {
	mock.Mock
}

func (m *MockLeaderboard) Entries(ctx context.Context, show bool) ([]models.RankedEntry, error) {
	args := m.Called(ctx, show)
	return args.Get(0).([]models.RankedEntry), args.Error(1)
}

func readySnapshot(phase models.Phase, show bool) countdown.Snapshot {
	return countdown.Snapshot{
		Status:          countdown.StatusReady,
		Result:          &models.CountdownResult{Phase: phase, Label: "label", Minutes: 5},
		ShowLeaderboard: show,
		Sequence:        7,
		SampledAt:       base,
	}
}

func newTestServer(t *testing.T, engine Countdown, voting Voting, lb Leaderboard) *httptest.Server {
	t.Helper()
	svc := NewService(engine, voting, lb, DefaultConfig())
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// authed issues a request carrying a voter's bearer token.
func authed(t *testing.T, method, url, token string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// hasToken matches a context carrying the given caller token.
func hasToken(token string) any {
	return mock.MatchedBy(func(ctx context.Context) bool {
		got, ok := clients.TokenFrom(ctx)
		return ok && got == token
	})
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGetCountdown(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseSubmissionsOpen, false)}
	srv := newTestServer(t, engine, new(MockVoting), new(MockLeaderboard))

	resp, err := http.Get(srv.URL + "/api/countdown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload CountdownPayload
	decodeBody(t, resp, &payload)
	assert.Equal(t, countdown.StatusReady, payload.Snapshot.Status)
	assert.Equal(t, view.KindSubmissionsOpen, payload.View.Kind)
	assert.Equal(t, "00:05:00", payload.View.Timer)
}

func TestGetView_VoterWithoutAssignments(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	voting.On("Assignments", hasToken("voter")).Return([]models.VoteAssignment{}, nil)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	resp := authed(t, http.MethodGet, srv.URL+"/api/view", "voter", "")

	var v view.View
	decodeBody(t, resp, &v)
	assert.Equal(t, view.KindVotingNotEligible, v.Kind)
	voting.AssertExpectations(t)
}

func TestGetView_AnonymousVoterIsNotEligible(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)

	var v view.View
	decodeBody(t, resp, &v)
	assert.Equal(t, view.KindVotingNotEligible, v.Kind)
	voting.AssertNotCalled(t, "Assignments", mock.Anything)
}

func TestGetView_Loading(t *testing.T) {
	engine := &stubEngine{snap: countdown.Snapshot{Status: countdown.StatusLoading}}
	srv := newTestServer(t, engine, new(MockVoting), new(MockLeaderboard))

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)

	var v view.View
	decodeBody(t, resp, &v)
	assert.Equal(t, view.KindLoading, v.Kind)
	assert.Equal(t, "--:--:--", v.Timer)
}

func TestAssignments_OnlyWhileVotingOpen(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseSubmissionsOpen, false)}
	srv := newTestServer(t, engine, new(MockVoting), new(MockLeaderboard))

	resp, err := http.Get(srv.URL + "/api/voting/assignments")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAssignments_Unauthenticated(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	for _, header := range []string{"", "Bearer ", "Basic dXNlcjpwYXNz"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/voting/assignments", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
	}
	voting.AssertNotCalled(t, "AssignedSubmissions", mock.Anything)
}

func TestAssignments_RejectedToken(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	voting.On("AssignedSubmissions", hasToken("expired")).
		Return([]models.AssignedSubmission(nil), competition.ErrUnauthenticated)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	resp := authed(t, http.MethodGet, srv.URL+"/api/voting/assignments", "expired", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	voting.AssertExpectations(t)
}

func TestAssignments_UseCallerToken(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	voting.On("AssignedSubmissions", hasToken("alice")).
		Return([]models.AssignedSubmission{{Assignment: models.VoteAssignment{SubmissionID: 1}}}, nil).Once()
	voting.On("AssignedSubmissions", hasToken("bob")).
		Return([]models.AssignedSubmission{}, nil).Once()
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	var items []models.AssignedSubmission
	decodeBody(t, authed(t, http.MethodGet, srv.URL+"/api/voting/assignments", "alice", ""), &items)
	assert.Len(t, items, 1)

	decodeBody(t, authed(t, http.MethodGet, srv.URL+"/api/voting/assignments", "bob", ""), &items)
	assert.Empty(t, items)
	voting.AssertExpectations(t)
}

func TestSubmitVote(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	params := models.VoteParams{
		SubmissionID:             3,
		ProblemFitScore:          4,
		ClarityScore:             5,
		StyleInterpretationScore: 3,
		OriginalityScore:         2,
		OverallQualityScore:      4,
	}
	voting := new(MockVoting)
	voting.On("SubmitVote", hasToken("voter"), params).Return(models.Vote{ID: 11, SubmissionID: 3}, nil)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	body := `{"submission_id":3,"problem_fit_score":4,"clarity_score":5,"style_interpretation_score":3,"originality_score":2,"overall_quality_score":4}`
	resp, err := http.Post(srv.URL+"/api/voting/votes", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = authed(t, http.MethodPost, srv.URL+"/api/voting/votes", "voter", body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var vote models.Vote
	decodeBody(t, resp, &vote)
	assert.Equal(t, 11, vote.ID)
	voting.AssertExpectations(t)
}

func TestSubmitVote_Rejected(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseVotingOpen, false)}
	voting := new(MockVoting)
	srv := newTestServer(t, engine, voting, new(MockLeaderboard))

	for _, body := range []string{"not json", `{"submission_id":3,"clarity_score":9}`} {
		resp := authed(t, http.MethodPost, srv.URL+"/api/voting/votes", "voter", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	voting.AssertNotCalled(t, "SubmitVote", mock.Anything, mock.Anything)
}

func TestLeaderboard(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseCompetitionOver, false)}
	lb := new(MockLeaderboard)
	lb.On("Entries", mock.Anything, false).Return([]models.RankedEntry(nil), competition.ErrLeaderboardHidden)
	srv := newTestServer(t, engine, new(MockVoting), lb)

	resp, err := http.Get(srv.URL + "/api/leaderboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	engine.mu.Lock()
	engine.snap = readySnapshot(models.PhaseCompetitionOver, true)
	engine.mu.Unlock()
	lb.On("Entries", mock.Anything, true).Return([]models.RankedEntry{{Rank: 1, Score: models.LeaderboardEntry{SubmissionID: 3, FinalScore: 23}}}, nil)

	resp, err = http.Get(srv.URL + "/api/leaderboard")
	require.NoError(t, err)
	var entries []models.RankedEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
}

func TestRefresh(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseSubmissionsOpen, false)}
	srv := newTestServer(t, engine, new(MockVoting), new(MockLeaderboard))

	resp, err := http.Post(srv.URL+"/api/countdown/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, engine.refreshed)
}

type staticSource struct {
	cfg models.CompetitionConfig
}

func (s staticSource) FetchCompetitionStatus(context.Context) (models.CompetitionConfig, error) {
	return s.cfg, nil
}

func readFeed(t *testing.T, conn *websocket.Conn, want MessageType) FeedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg FeedMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestCountdownFeed(t *testing.T) {
	fc := clockwork.NewFakeClockAt(base.Add(90 * time.Minute))
	engine := countdown.NewEngine(staticSource{cfg: models.CompetitionConfig{
		SubmissionsOpenAt:  base,
		SubmissionsCloseAt: base.Add(time.Hour),
		VotingCloseAt:      base.Add(2 * time.Hour),
	}}, countdown.DefaultConfig(), countdown.WithClock(fc))
	defer engine.Close()

	svc := NewService(engine, new(MockVoting), new(MockLeaderboard), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/countdown"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var payload CountdownPayload
	for payload.View.Kind != view.KindVotingGallery {
		msg := readFeed(t, conn, MessageTypeCountdown)
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
	}
	assert.Equal(t, models.PhaseVotingOpen, payload.Snapshot.Phase())
	assert.Equal(t, "00:30:00", payload.View.Timer)

	assert.Eventually(t, func() bool { return svc.Stats().TotalConnections == 1 }, time.Second, 10*time.Millisecond)

	ctxTr := competition.WithTransition(context.Background(), competition.Transition{
		From: models.PhaseWaitingForVoting,
		To:   models.PhaseVotingOpen,
		At:   fc.Now(),
	})
	require.NoError(t, svc.Invalidate(ctxTr, countdown.VotingNamespace))

	msg := readFeed(t, conn, MessageTypeInvalidate)
	var inv InvalidatePayload
	require.NoError(t, json.Unmarshal(msg.Data, &inv))
	assert.Equal(t, "voting", inv.Namespace)
	assert.Equal(t, "voting_open", inv.Phase)

	conn.Close()
	assert.Eventually(t, func() bool { return svc.Stats().TotalConnections == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !engine.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	engine := &stubEngine{snap: readySnapshot(models.PhaseSubmissionsOpen, false)}
	cfg := DefaultConfig()
	cfg.NATSConnected = func() bool { return false }
	svc := NewService(engine, new(MockVoting), new(MockLeaderboard), cfg)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["nats_connected"])
	assert.Equal(t, "ready", body["countdown"])
	assert.Equal(t, float64(0), body["connections"])
}

func TestEnqueueAfterUnregister(t *testing.T) {
	cm := NewConnectionManager(&stubEngine{}, DefaultConnectionConfig())
	conn := &Connection{ID: "c1", Send: make(chan []byte, 1), Manager: cm, ConnectedAt: time.Now()}
	cm.registerConnection(conn)

	assert.True(t, conn.enqueue([]byte("one")))
	assert.False(t, conn.enqueue([]byte("two")), "full buffer must report false")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, func() { conn.enqueue([]byte("late")) })
		}()
	}
	cm.unregisterConnection(conn)
	wg.Wait()

	assert.True(t, conn.enqueue([]byte("dropped")))
	assert.NotPanics(t, func() { cm.unregisterConnection(conn) })
	assert.Equal(t, 0, cm.Stats().TotalConnections)

	cm.handleBroadcast([]byte("broadcast"))
}
