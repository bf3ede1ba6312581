package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/designjam/go/internal/competition"
	"github.com/mcdev12/designjam/go/internal/models"
)

var base = time.Date(2026, 1, 24, 18, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func hourConfig() models.CompetitionConfig {
	return models.CompetitionConfig{
		SubmissionsOpenAt:  at(0),
		SubmissionsCloseAt: at(3600),
		VotingCloseAt:      at(7200),
	}
}

func TestResolve_BeforeSubmissionsOpen(t *testing.T) {
	cfg := hourConfig()

	for _, offset := range []int{-86400, -3600, -61, -1} {
		res, err := Resolve(cfg, at(offset))
		require.NoError(t, err)
		assert.Equal(t, models.PhaseWaitingForSubmissions, res.Phase)
		require.NotNil(t, res.Target)
		assert.True(t, res.Target.Equal(cfg.SubmissionsOpenAt))
		assert.False(t, res.IsExpired)
		assert.Equal(t, int64(-offset), res.TotalSeconds())
		assert.Equal(t, "Submissions open in", res.Label)
	}
}

func TestResolve_OneSecondBeforeClose(t *testing.T) {
	res, err := Resolve(hourConfig(), at(3599))
	require.NoError(t, err)

	assert.Equal(t, models.PhaseSubmissionsOpen, res.Phase)
	assert.Equal(t, uint32(0), res.Hours)
	assert.Equal(t, uint32(0), res.Minutes)
	assert.Equal(t, uint32(1), res.Seconds)
	assert.False(t, res.IsExpired)
}

func TestResolve_AtCloseWithoutVotingOpen(t *testing.T) {
	cfg := hourConfig()

	res, err := Resolve(cfg, at(3600))
	require.NoError(t, err)

	assert.Equal(t, models.PhaseWaitingForVoting, res.Phase)
	require.NotNil(t, res.Target)
	assert.True(t, res.Target.Equal(at(3600)))
	assert.Zero(t, res.TotalSeconds())

	next, err := Resolve(cfg, at(3601))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVotingOpen, next.Phase)
	assert.True(t, next.Target.Equal(cfg.VotingCloseAt))
	assert.Equal(t, int64(3599), next.TotalSeconds())
}

func TestResolve_AtCloseWithCoincidingVotingOpen(t *testing.T) {
	cfg := hourConfig()
	votingOpen := at(3600)
	cfg.VotingOpenAt = &votingOpen

	res, err := Resolve(cfg, at(3600))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVotingOpen, res.Phase)
	assert.Equal(t, int64(3600), res.TotalSeconds())
}

func TestResolve_ExplicitVotingOpenGap(t *testing.T) {
	cfg := hourConfig()
	votingOpen := at(5400)
	cfg.VotingOpenAt = &votingOpen

	res, err := Resolve(cfg, at(3600))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseWaitingForVoting, res.Phase)
	assert.True(t, res.Target.Equal(votingOpen))
	assert.Equal(t, uint32(0), res.Hours)
	assert.Equal(t, uint32(30), res.Minutes)
	assert.Equal(t, uint32(0), res.Seconds)
	assert.Equal(t, "Voting begins in", res.Label)

	res, err = Resolve(cfg, at(5400))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVotingOpen, res.Phase)
	assert.Equal(t, "Voting ends in", res.Label)
}

func TestResolve_CompetitionOver(t *testing.T) {
	for _, offset := range []int{7200, 7201, 100000} {
		res, err := Resolve(hourConfig(), at(offset))
		require.NoError(t, err)
		assert.Equal(t, models.PhaseCompetitionOver, res.Phase)
		assert.True(t, res.IsExpired)
		assert.Nil(t, res.Target)
		assert.Zero(t, res.TotalSeconds())
	}
}

func TestResolve_Idempotent(t *testing.T) {
	cfg := hourConfig()
	now := at(1234).Add(567 * time.Millisecond)

	first, err := Resolve(cfg, now)
	require.NoError(t, err)
	second, err := Resolve(cfg, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_DecompositionLaw(t *testing.T) {
	cfg := models.CompetitionConfig{
		SubmissionsOpenAt:  at(0),
		SubmissionsCloseAt: at(200000),
		VotingCloseAt:      at(400000),
	}

	for sec := -5000; sec < 400000; sec += 977 {
		now := at(sec).Add(250 * time.Millisecond)
		res, err := Resolve(cfg, now)
		require.NoError(t, err)
		if res.IsExpired {
			continue
		}
		want := int64(res.Target.Sub(now) / time.Second)
		assert.Equal(t, want, res.TotalSeconds(), "now=%s", now)
		assert.Less(t, res.Minutes, uint32(60))
		assert.Less(t, res.Seconds, uint32(60))
	}
}

func TestResolve_CountdownMonotonicWithinPhase(t *testing.T) {
	cfg := hourConfig()

	prev, err := Resolve(cfg, at(-600))
	require.NoError(t, err)
	for sec := -599; sec < 7300; sec++ {
		cur, err := Resolve(cfg, at(sec))
		require.NoError(t, err)
		if cur.Phase == prev.Phase {
			assert.LessOrEqual(t, cur.TotalSeconds(), prev.TotalSeconds(), "sec=%d", sec)
		} else {
			assert.True(t, prev.Phase.Before(cur.Phase), "phase went backwards at sec=%d", sec)
		}
		prev = cur
	}
}

func TestResolve_SubSecondRemainingTruncates(t *testing.T) {
	res, err := Resolve(hourConfig(), at(3599).Add(400*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, models.PhaseSubmissionsOpen, res.Phase)
	assert.Zero(t, res.TotalSeconds())
	assert.False(t, res.IsExpired)
	assert.Equal(t, 600*time.Millisecond, res.Remaining)
}

func TestResolve_CustomLabels(t *testing.T) {
	r := NewResolver(map[models.Phase]string{
		models.PhaseSubmissionsOpen: "Hurry up",
		models.Phase("bogus"):       "ignored",
	})

	res, err := r.Resolve(hourConfig(), at(10))
	require.NoError(t, err)
	assert.Equal(t, "Hurry up", res.Label)

	res, err = r.Resolve(hourConfig(), at(-10))
	require.NoError(t, err)
	assert.Equal(t, "Submissions open in", res.Label)
}

func TestValidate(t *testing.T) {
	early := at(1800)
	late := at(9000)

	tests := []struct {
		name  string
		cfg   models.CompetitionConfig
		field string
	}{
		{
			name:  "missing open",
			cfg:   models.CompetitionConfig{SubmissionsCloseAt: at(1), VotingCloseAt: at(2)},
			field: "submissions_open_at",
		},
		{
			name:  "missing voting close",
			cfg:   models.CompetitionConfig{SubmissionsOpenAt: at(0), SubmissionsCloseAt: at(1)},
			field: "voting_close_at",
		},
		{
			name:  "close before open",
			cfg:   models.CompetitionConfig{SubmissionsOpenAt: at(10), SubmissionsCloseAt: at(5), VotingCloseAt: at(20)},
			field: "submissions_close_at",
		},
		{
			name: "voting opens before close",
			cfg: models.CompetitionConfig{
				SubmissionsOpenAt: at(0), SubmissionsCloseAt: at(3600), VotingOpenAt: &early, VotingCloseAt: at(7200),
			},
			field: "voting_open_at",
		},
		{
			name: "voting closes before it opens",
			cfg: models.CompetitionConfig{
				SubmissionsOpenAt: at(0), SubmissionsCloseAt: at(3600), VotingOpenAt: &late, VotingCloseAt: at(7200),
			},
			field: "voting_close_at",
		},
		{
			name:  "voting close before submissions close",
			cfg:   models.CompetitionConfig{SubmissionsOpenAt: at(0), SubmissionsCloseAt: at(3600), VotingCloseAt: at(100)},
			field: "voting_close_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			require.Error(t, err)

			var ve *competition.ConfigValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, competition.CodeConfigValidation, competition.CodeOf(err))

			_, resolveErr := Resolve(tt.cfg, at(0))
			assert.ErrorAs(t, resolveErr, &ve)
		})
	}
}

func TestValidate_DegenerateButOrdered(t *testing.T) {
	cfg := models.CompetitionConfig{
		SubmissionsOpenAt:  at(0),
		SubmissionsCloseAt: at(0),
		VotingCloseAt:      at(0),
	}
	require.NoError(t, Validate(cfg))

	res, err := Resolve(cfg, at(0))
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompetitionOver, res.Phase)
}

func TestDecompose(t *testing.T) {
	h, m, s := Decompose(10*time.Hour + 15*time.Minute + 59*time.Second + 999*time.Millisecond)
	assert.Equal(t, []uint32{10, 15, 59}, []uint32{h, m, s})

	h, m, s = Decompose(-time.Second)
	assert.Equal(t, []uint32{0, 0, 0}, []uint32{h, m, s})
}
