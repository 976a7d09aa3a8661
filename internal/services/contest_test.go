package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jjudge-oj/contestd/internal/keylock"
	"github.com/jjudge-oj/contestd/internal/services"
	"github.com/jjudge-oj/contestd/internal/store"
	"github.com/jjudge-oj/contestd/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contestFixture struct {
	svc     *services.ContestService
	mem     *store.Memory
	locks   *keylock.Locker
	contest types.Contest
}

func newContestFixture(t *testing.T, ct types.ContestType) contestFixture {
	t.Helper()
	return newContestFixtureWith(t, ct, nil)
}

func newContestFixtureWith(t *testing.T, ct types.ContestType, players services.PlayerRepository) contestFixture {
	t.Helper()
	mem := store.NewMemory()
	mem.Problems.Add(1, 2)
	mem.Users.Put(types.User{ID: 5, Username: "holder"})
	mem.Users.Put(types.User{ID: 6, Username: "root", Role: types.AdminRole})
	mem.Users.Put(types.User{ID: 7, Username: "alice"})

	if players == nil {
		players = mem.Players
	}
	locks := keylock.New()
	svc := services.NewContestService(services.ContestRepositories{
		Contests:  mem.Contests,
		Players:   players,
		Ranklists: mem.Ranklists,
		Users:     mem.Users,
		Problems:  mem.Problems,
	}, locks, time.Minute, zerolog.Nop())

	contest, err := svc.Create(context.Background(), types.Contest{
		Title:        "Weekly",
		Type:         ct,
		StartTime:    1000,
		RankStopTime: 1800,
		EndTime:      2000,
		HolderID:     5,
		Problems:     []int{1, 2},
	}, types.RankingParams{})
	require.NoError(t, err)

	return contestFixture{svc: svc, mem: mem, locks: locks, contest: contest}
}

func submission(id int64, user, problem int, at int64, v types.Verdict) types.JudgeState {
	return types.JudgeState{SubmissionID: id, UserID: user, ProblemID: problem, SubmitTime: at, Verdict: v}
}

func TestSubmitUpdatesBothRanklists(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(1, 7, 1, 1500, types.VerdictWrongAnswer)))
	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(2, 7, 2, 1500, types.VerdictAccepted)))

	full, err := f.svc.Standings(ctx, f.contest.ID, false)
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, 7, full[0].UserID)
	assert.Equal(t, 1, full[0].Rank)
	assert.Len(t, full[0].Problems, 2)
	assert.Equal(t, 1, full[0].Solved)

	masked, err := f.svc.Standings(ctx, f.contest.ID, true)
	require.NoError(t, err)
	assert.Equal(t, full, masked)

	assert.Equal(t, 1, f.mem.Players.Count(f.contest.ID))
	assert.Zero(t, f.locks.Len())
}

func TestSubmitRejectsProblemOutsideContest(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	err := f.svc.Submit(ctx, f.contest.ID, submission(1, 7, 3, 1500, types.VerdictAccepted))
	require.ErrorIs(t, err, services.ErrInvalidProblem)

	assert.Zero(t, f.mem.Players.Count(f.contest.ID))
	assert.Equal(t, 1, f.mem.Ranklists.Count())
	full, err := f.svc.Standings(ctx, f.contest.ID, false)
	require.NoError(t, err)
	assert.Empty(t, full)
}

func TestSubmitIgnoresOutOfWindow(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeIOI)

	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(1, 7, 1, 999, types.VerdictAccepted)))
	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(2, 7, 1, 2001, types.VerdictAccepted)))
	// Out-of-window checks come first, even for unknown problems.
	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(3, 7, 3, 2001, types.VerdictAccepted)))

	assert.Zero(t, f.mem.Players.Count(f.contest.ID))
	assert.Equal(t, 1, f.mem.Ranklists.Count())

	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(4, 7, 1, 2000, types.VerdictAccepted)))
	assert.Equal(t, 1, f.mem.Players.Count(f.contest.ID))
}

func TestSubmitUnknownContest(t *testing.T) {
	f := newContestFixture(t, types.ContestTypeICPC)
	err := f.svc.Submit(context.Background(), 404, submission(1, 7, 1, 1500, types.VerdictAccepted))
	require.ErrorIs(t, err, services.ErrContestNotFound)
}

func TestSubmitFrozenSubmissionIsHiddenFromMaskedView(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, submission(1, 7, 1, 1850, types.VerdictAccepted)))

	full, err := f.svc.Standings(ctx, f.contest.ID, false)
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, 1, full[0].Solved)

	masked, err := f.svc.Standings(ctx, f.contest.ID, true)
	require.NoError(t, err)
	require.Len(t, masked, 1)
	assert.Zero(t, masked[0].Solved)
	assert.Equal(t, 1, masked[0].Pending)
	assert.Equal(t, 1, masked[0].Problems[1].Pending)
}

func TestSubmitSerializesSameContestant(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- f.svc.Submit(ctx, f.contest.ID, submission(int64(i), 7, 1, 1500, types.VerdictWrongAnswer))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	player, err := f.mem.Players.FindInContest(ctx, f.contest.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, n, player.Results[1].Attempts)
	assert.Equal(t, n, player.FrozenResults[1].Attempts)

	full, err := f.svc.Standings(ctx, f.contest.ID, false)
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, n, full[0].Problems[1].Attempts)
	assert.Zero(t, f.locks.Len())
}

func TestSubmitCreatesMaskedRanklistOnce(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeIOI)

	const users = 25
	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			js := submission(int64(u), 100+u, 1, 1500, types.VerdictWrongAnswer)
			js.Score = float64(u)
			assert.NoError(t, f.svc.Submit(ctx, f.contest.ID, js))
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 2, f.mem.Ranklists.Count())

	contest, err := f.svc.Get(ctx, f.contest.ID)
	require.NoError(t, err)
	assert.NotZero(t, contest.MaskedRanklistID)

	for _, masked := range []bool{false, true} {
		standings, err := f.svc.Standings(ctx, f.contest.ID, masked)
		require.NoError(t, err)
		require.Len(t, standings, users)
		assert.Equal(t, 100+users, standings[0].UserID)
		assert.Equal(t, 101, standings[users-1].UserID)
	}
}

func TestSubmitIOIReplayDoesNotRegress(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeIOI)

	best := submission(1, 7, 1, 1100, types.VerdictWrongAnswer)
	best.Score = 80
	worse := submission(2, 7, 1, 1200, types.VerdictWrongAnswer)
	worse.Score = 10

	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, best))
	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, worse))
	require.NoError(t, f.svc.Submit(ctx, f.contest.ID, best))

	full, err := f.svc.Standings(ctx, f.contest.ID, false)
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, float64(80), full[0].Score)
}

type failingPlayers struct {
	services.PlayerRepository
}

func (failingPlayers) Update(context.Context, types.ContestPlayer) (types.ContestPlayer, error) {
	return types.ContestPlayer{}, errors.New("connection reset")
}

func TestSubmitStorageFailureReleasesLock(t *testing.T) {
	mem := store.NewMemory()
	f := newContestFixtureWith(t, types.ContestTypeICPC, failingPlayers{PlayerRepository: mem.Players})

	err := f.svc.Submit(context.Background(), f.contest.ID, submission(1, 7, 1, 1500, types.VerdictAccepted))
	require.ErrorIs(t, err, services.ErrStorageUnavailable)
	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, f.locks.Len())

	err = f.svc.Submit(context.Background(), f.contest.ID, submission(2, 7, 1, 1500, types.VerdictAccepted))
	require.ErrorIs(t, err, services.ErrStorageUnavailable)
}

func TestSetProblemsFiltersUnknownAndDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeNOI)

	_, err := f.svc.Get(ctx, f.contest.ID)
	require.NoError(t, err)

	updated, err := f.svc.SetProblems(ctx, f.contest.ID, []int{2, 9, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, updated.Problems)

	cached, err := f.svc.Get(ctx, f.contest.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, cached.Problems)

	_, err = f.svc.SetProblems(ctx, 404, []int{1})
	require.ErrorIs(t, err, services.ErrContestNotFound)
}

func TestIsSupervisor(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	for userID, want := range map[int]bool{5: true, 6: true, 7: false, 99: false} {
		got, err := f.svc.IsSupervisor(ctx, f.contest.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", userID)
	}
}

func TestCreateValidatesContest(t *testing.T) {
	ctx := context.Background()
	f := newContestFixture(t, types.ContestTypeICPC)

	_, err := f.svc.Create(ctx, types.Contest{Type: "codeforces", StartTime: 1, EndTime: 2}, types.RankingParams{})
	require.ErrorIs(t, err, services.ErrInvalidContest)

	_, err = f.svc.Create(ctx, types.Contest{Type: types.ContestTypeIOI, StartTime: 10, EndTime: 5}, types.RankingParams{})
	require.ErrorIs(t, err, services.ErrInvalidContest)

	_, err = f.svc.Create(ctx, types.Contest{Type: types.ContestTypeIOI, StartTime: 10, RankStopTime: 30, EndTime: 20}, types.RankingParams{})
	require.ErrorIs(t, err, services.ErrInvalidContest)
}

func TestVisibility(t *testing.T) {
	f := newContestFixture(t, types.ContestTypeIOI)
	v, err := f.svc.Visibility(context.Background(), f.contest.ID)
	require.NoError(t, err)
	assert.True(t, v.SeeScore)
}

// stallingContests blocks the next Get after it has read the row, until
// release is closed.
type stallingContests struct {
	services.ContestRepository
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (r *stallingContests) Get(ctx context.Context, id int) (types.Contest, error) {
	contest, err := r.ContestRepository.Get(ctx, id)
	if r.armed.CompareAndSwap(true, false) {
		close(r.read)
		<-r.release
	}
	return contest, err
}

func TestCacheNotFilledByLoadStartedBeforeUpdate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Problems.Add(1, 2, 3)
	contests := &stallingContests{
		ContestRepository: mem.Contests,
		read:              make(chan struct{}),
		release:           make(chan struct{}),
	}
	svc := services.NewContestService(services.ContestRepositories{
		Contests:  contests,
		Players:   mem.Players,
		Ranklists: mem.Ranklists,
		Users:     mem.Users,
		Problems:  mem.Problems,
	}, keylock.New(), time.Minute, zerolog.Nop())

	contest, err := svc.Create(ctx, types.Contest{
		Title:     "Weekly",
		Type:      types.ContestTypeICPC,
		StartTime: 1000,
		EndTime:   2000,
		Problems:  []int{1, 2},
	}, types.RankingParams{})
	require.NoError(t, err)

	contests.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Get(ctx, contest.ID)
		done <- err
	}()
	<-contests.read

	updated, err := svc.SetProblems(ctx, contest.ID, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, updated.Problems)

	close(contests.release)
	require.NoError(t, <-done)

	require.NoError(t, svc.Submit(ctx, contest.ID, submission(1, 7, 3, 1500, types.VerdictAccepted)))
	current, err := svc.Get(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, current.Problems)
}
