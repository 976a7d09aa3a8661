package ranking_test

import (
	"testing"

	"github.com/jjudge-oj/contestd/internal/ranking"
	"github.com/jjudge-oj/contestd/internal/scoring"
	"github.com/jjudge-oj/contestd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func icpcContest() types.Contest {
	return types.Contest{
		ID:           1,
		Type:         types.ContestTypeICPC,
		StartTime:    1000,
		RankStopTime: 1800,
		EndTime:      2000,
		Problems:     []int{1, 2},
	}
}

func play(c types.Contest, s scoring.Strategy, user int, states ...types.JudgeState) types.ContestPlayer {
	p := types.NewContestPlayer(c.ID, user)
	for _, js := range states {
		js.UserID = user
		p = scoring.Apply(s, c, p, js)
	}
	return p
}

func TestUpdatePlayerFullView(t *testing.T) {
	c := icpcContest()
	s := scoring.ICPC{}
	p := play(c, s, 7,
		types.JudgeState{SubmissionID: 1, ProblemID: 1, SubmitTime: 1500, Verdict: types.VerdictWrongAnswer},
		types.JudgeState{SubmissionID: 2, ProblemID: 2, SubmitTime: 1500, Verdict: types.VerdictAccepted},
	)

	rl := &types.Ranklist{ID: 1}
	entry := ranking.UpdatePlayer(c, s, rl, p, false)

	require.Contains(t, rl.Entries, 7)
	assert.Equal(t, entry, rl.Entries[7])
	assert.Len(t, entry.Problems, 2)
	assert.Equal(t, 1, entry.Solved)
	assert.Equal(t, int64(500), entry.Penalty)
	assert.Equal(t, int64(500), entry.LastAcceptTime)
	assert.Equal(t, 1, entry.Problems[1].Attempts)
	assert.False(t, entry.Problems[1].Accepted)
	assert.True(t, entry.Problems[2].Accepted)
}

func TestUpdatePlayerMaskedViewHidesFrozenSubmissions(t *testing.T) {
	c := icpcContest()
	s := scoring.ICPC{}
	p := play(c, s, 7,
		types.JudgeState{SubmissionID: 1, ProblemID: 1, SubmitTime: 1500, Verdict: types.VerdictWrongAnswer},
		types.JudgeState{SubmissionID: 2, ProblemID: 1, SubmitTime: 1850, Verdict: types.VerdictAccepted},
		types.JudgeState{SubmissionID: 3, ProblemID: 2, SubmitTime: 1900, Verdict: types.VerdictAccepted},
	)

	full := ranking.UpdatePlayer(c, s, &types.Ranklist{}, p, false)
	masked := ranking.UpdatePlayer(c, s, &types.Ranklist{}, p, true)

	assert.Equal(t, 2, full.Solved)
	assert.Zero(t, full.Pending)

	assert.Equal(t, 0, masked.Solved)
	assert.Equal(t, 2, masked.Pending)
	assert.Equal(t, 1, masked.Problems[1].Attempts)
	assert.Equal(t, 1, masked.Problems[1].Pending)
	assert.False(t, masked.Problems[1].Accepted)

	require.Contains(t, masked.Problems, 2)
	assert.Zero(t, masked.Problems[2].Attempts)
	assert.Equal(t, 1, masked.Problems[2].Pending)
}

func TestUpdatePlayerMirrorsBeforeFreeze(t *testing.T) {
	c := icpcContest()
	s := scoring.ICPC{}
	p := play(c, s, 7,
		types.JudgeState{SubmissionID: 1, ProblemID: 1, SubmitTime: 1500, Verdict: types.VerdictWrongAnswer},
		types.JudgeState{SubmissionID: 2, ProblemID: 2, SubmitTime: 1500, Verdict: types.VerdictWrongAnswer},
	)

	full := ranking.UpdatePlayer(c, s, &types.Ranklist{}, p, false)
	masked := ranking.UpdatePlayer(c, s, &types.Ranklist{}, p, true)
	assert.Equal(t, full, masked)
}

func TestUpdatePlayerSkipsRemovedProblems(t *testing.T) {
	c := icpcContest()
	s := scoring.ICPC{}
	p := play(c, s, 7,
		types.JudgeState{SubmissionID: 1, ProblemID: 2, SubmitTime: 1500, Verdict: types.VerdictAccepted},
	)

	c.Problems = []int{1}
	entry := ranking.UpdatePlayer(c, s, &types.Ranklist{}, p, false)
	assert.Empty(t, entry.Problems)
	assert.Zero(t, entry.Solved)
}

func TestUpdatePlayerAppliesWeights(t *testing.T) {
	c := icpcContest()
	c.Type = types.ContestTypeIOI
	s := scoring.IOI{}
	p := play(c, s, 3,
		types.JudgeState{SubmissionID: 1, ProblemID: 1, SubmitTime: 1100, Verdict: types.VerdictWrongAnswer, Score: 50},
		types.JudgeState{SubmissionID: 2, ProblemID: 2, SubmitTime: 1100, Verdict: types.VerdictAccepted, Score: 100},
	)

	rl := &types.Ranklist{Params: types.RankingParams{ProblemWeights: map[int]float64{2: 2}}}
	entry := ranking.UpdatePlayer(c, s, rl, p, false)
	assert.Equal(t, float64(250), entry.Score)
	assert.Equal(t, 1, entry.Solved)
}

func TestUpdatePlayerReplacesOnlyOwnEntry(t *testing.T) {
	c := icpcContest()
	s := scoring.ICPC{}
	rl := &types.Ranklist{Entries: map[int]types.RankEntry{9: {UserID: 9, Solved: 1}}}

	ranking.UpdatePlayer(c, s, rl, play(c, s, 7), false)
	assert.Len(t, rl.Entries, 2)
	assert.Equal(t, 1, rl.Entries[9].Solved)
}

func TestStandingsSharesRanksOnTies(t *testing.T) {
	rl := types.Ranklist{Entries: map[int]types.RankEntry{
		4: {UserID: 4, Solved: 1, Penalty: 100},
		2: {UserID: 2, Solved: 2, Penalty: 900},
		9: {UserID: 9, Solved: 2, Penalty: 900},
		1: {UserID: 1, Solved: 0},
	}}

	got := ranking.Standings(scoring.ICPC{}, rl)
	require.Len(t, got, 4)

	var users, ranks []int
	for _, st := range got {
		users = append(users, st.UserID)
		ranks = append(ranks, st.Rank)
	}
	assert.Equal(t, []int{2, 9, 4, 1}, users)
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
}

func TestStandingsByScore(t *testing.T) {
	rl := types.Ranklist{Entries: map[int]types.RankEntry{
		1: {UserID: 1, Score: 120},
		2: {UserID: 2, Score: 300},
		3: {UserID: 3, Score: 120},
	}}

	got := ranking.Standings(scoring.NOI{}, rl)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].UserID)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 1, got[1].UserID)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, 3, got[2].UserID)
	assert.Equal(t, 2, got[2].Rank)
}

func TestStandingsEmpty(t *testing.T) {
	assert.Empty(t, ranking.Standings(scoring.IOI{}, types.Ranklist{}))
}
