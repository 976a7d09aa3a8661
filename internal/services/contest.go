package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jjudge-oj/contestd/internal/keylock"
	"github.com/jjudge-oj/contestd/internal/ranking"
	"github.com/jjudge-oj/contestd/internal/scoring"
	"github.com/jjudge-oj/contestd/internal/store"
	"github.com/jjudge-oj/contestd/types"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	submissionNamespace     = "newSubmission"
	maskedRanklistNamespace = "maskedRanklist"

	defaultContestCacheTTL = 30 * time.Second
)

// ContestRepository defines persistence operations for contests.
type ContestRepository interface {
	Get(ctx context.Context, id int) (types.Contest, error)
	Create(ctx context.Context, contest types.Contest) (types.Contest, error)
	Update(ctx context.Context, contest types.Contest) (types.Contest, error)
}

// PlayerRepository defines persistence operations for contest players.
type PlayerRepository interface {
	FindInContest(ctx context.Context, contestID, userID int) (types.ContestPlayer, error)
	Create(ctx context.Context, player types.ContestPlayer) (types.ContestPlayer, error)
	Update(ctx context.Context, player types.ContestPlayer) (types.ContestPlayer, error)
}

// RanklistRepository defines persistence operations for ranklists.
// Get returns the header only; entries are read and written one user at a time.
type RanklistRepository interface {
	Get(ctx context.Context, id int) (types.Ranklist, error)
	Create(ctx context.Context, rl types.Ranklist) (types.Ranklist, error)
	Entries(ctx context.Context, ranklistID int) (map[int]types.RankEntry, error)
	PutEntry(ctx context.Context, ranklistID int, entry types.RankEntry) error
}

// UserRepository looks up users by id.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// ProblemRepository checks the problem catalogue.
type ProblemRepository interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// ContestRepositories groups the collaborators of ContestService.
type ContestRepositories struct {
	Contests  ContestRepository
	Players   PlayerRepository
	Ranklists RanklistRepository
	Users     UserRepository
	Problems  ProblemRepository
}

// ContestService ingests judged submissions and serves ranklists.
type ContestService struct {
	contests  ContestRepository
	players   PlayerRepository
	ranklists RanklistRepository
	users     UserRepository
	problems  ProblemRepository

	locks *keylock.Locker
	cache *cache.Cache
	log   zerolog.Logger

	// generations counts invalidations per contest. A load that started
	// before an invalidation must not fill the cache.
	genMu       sync.Mutex
	generations map[int]uint64
}

// NewContestService wires a ContestService. A zero cacheTTL selects the default.
func NewContestService(repos ContestRepositories, locks *keylock.Locker, cacheTTL time.Duration, log zerolog.Logger) *ContestService {
	if cacheTTL <= 0 {
		cacheTTL = defaultContestCacheTTL
	}
	return &ContestService{
		contests:    repos.Contests,
		players:     repos.Players,
		ranklists:   repos.Ranklists,
		users:       repos.Users,
		problems:    repos.Problems,
		locks:       locks,
		cache:       cache.New(cacheTTL, 2*cacheTTL),
		log:         log.With().Str("component", "contest").Logger(),
		generations: make(map[int]uint64),
	}
}

// Get returns the contest, served from cache when fresh.
func (s *ContestService) Get(ctx context.Context, id int) (types.Contest, error) {
	key := strconv.Itoa(id)
	if cached, ok := s.cache.Get(key); ok {
		return cloneContest(cached.(types.Contest)), nil
	}

	s.genMu.Lock()
	gen := s.generations[id]
	s.genMu.Unlock()

	contest, err := s.loadContest(ctx, id)
	if err != nil {
		return types.Contest{}, err
	}

	s.genMu.Lock()
	if s.generations[id] == gen {
		s.cache.Set(key, cloneContest(contest), cache.DefaultExpiration)
	}
	s.genMu.Unlock()
	return contest, nil
}

// invalidate drops the cached record and stops in-flight loads from
// restoring it.
func (s *ContestService) invalidate(id int) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[id]++
	s.cache.Delete(strconv.Itoa(id))
}

// Create stores a new contest together with its full ranklist. The masked
// ranklist is created by the first submission.
func (s *ContestService) Create(ctx context.Context, contest types.Contest, params types.RankingParams) (types.Contest, error) {
	if _, err := scoring.ForType(contest.Type); err != nil {
		return types.Contest{}, fmt.Errorf("%w: %w", ErrInvalidContest, err)
	}
	if contest.EndTime < contest.StartTime {
		return types.Contest{}, fmt.Errorf("%w: end time before start time", ErrInvalidContest)
	}
	if contest.RankStopTime != 0 && (contest.RankStopTime < contest.StartTime || contest.RankStopTime > contest.EndTime) {
		return types.Contest{}, fmt.Errorf("%w: rank stop time outside the contest window", ErrInvalidContest)
	}

	problems, err := s.existingProblems(ctx, contest.Problems)
	if err != nil {
		return types.Contest{}, err
	}
	contest.Problems = problems

	full, err := s.ranklists.Create(ctx, types.Ranklist{Params: params})
	if err != nil {
		return types.Contest{}, storageErr("create ranklist", err)
	}
	contest.RanklistID = full.ID
	contest.MaskedRanklistID = 0

	created, err := s.contests.Create(ctx, contest)
	if err != nil {
		return types.Contest{}, storageErr("create contest", err)
	}
	s.log.Info().Int("contest_id", created.ID).Str("type", string(created.Type)).Msg("contest created")
	return created, nil
}

// Submit folds a judged submission into the contest's ranking state.
//
// Submissions made outside the contest window are ignored without error.
// A problem outside the contest fails with ErrInvalidProblem before any
// state is touched. The remaining steps run under a lock on
// (contest, user), so submissions of one contestant are applied one at a
// time while different contestants proceed concurrently.
func (s *ContestService) Submit(ctx context.Context, contestID int, js types.JudgeState) error {
	contest, err := s.Get(ctx, contestID)
	if err != nil {
		return err
	}

	if !contest.InWindow(js.SubmitTime) {
		s.log.Debug().
			Int("contest_id", contestID).
			Int("user_id", js.UserID).
			Int64("submission_id", js.SubmissionID).
			Int64("submit_time", js.SubmitTime).
			Msg("submission outside contest window ignored")
		return nil
	}
	if !contest.HasProblem(js.ProblemID) {
		return fmt.Errorf("%w: problem %d", ErrInvalidProblem, js.ProblemID)
	}

	strategy, err := scoring.ForType(contest.Type)
	if err != nil {
		return err
	}

	key := keylock.Key{Namespace: submissionNamespace, ContestID: contestID, SubjectID: js.UserID}
	return s.locks.Do(key, func() error {
		return s.applySubmission(ctx, contest, strategy, js)
	})
}

// applySubmission must be called with the submission key held.
func (s *ContestService) applySubmission(ctx context.Context, contest types.Contest, strategy scoring.Strategy, js types.JudgeState) error {
	player, err := s.findOrCreatePlayer(ctx, contest.ID, js.UserID)
	if err != nil {
		return err
	}

	full, err := s.ranklists.Get(ctx, contest.RanklistID)
	if err != nil {
		return storageErr("load ranklist", err)
	}
	masked, err := s.maskedRanklist(ctx, contest, full)
	if err != nil {
		return err
	}

	player = scoring.Apply(strategy, contest, player, js)
	player, err = s.players.Update(ctx, player)
	if err != nil {
		return storageErr("save player", err)
	}

	entry := ranking.UpdatePlayer(contest, strategy, &full, player, false)
	if err := s.ranklists.PutEntry(ctx, full.ID, entry); err != nil {
		return storageErr("save ranklist entry", err)
	}

	maskedEntry := ranking.UpdatePlayer(contest, strategy, &masked, player, true)
	if err := s.ranklists.PutEntry(ctx, masked.ID, maskedEntry); err != nil {
		return storageErr("save masked ranklist entry", err)
	}

	s.log.Debug().
		Int("contest_id", contest.ID).
		Int("user_id", js.UserID).
		Int("problem_id", js.ProblemID).
		Int64("submission_id", js.SubmissionID).
		Str("verdict", js.Verdict.String()).
		Int("solved", entry.Solved).
		Float64("score", entry.Score).
		Msg("submission applied")
	return nil
}

func (s *ContestService) findOrCreatePlayer(ctx context.Context, contestID, userID int) (types.ContestPlayer, error) {
	player, err := s.players.FindInContest(ctx, contestID, userID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.ContestPlayer{}, storageErr("load player", err)
	}

	player, err = s.players.Create(ctx, types.NewContestPlayer(contestID, userID))
	if err != nil {
		return types.ContestPlayer{}, storageErr("create player", err)
	}
	s.log.Debug().Int("contest_id", contestID).Int("user_id", userID).Msg("player created")
	return player, nil
}

// maskedRanklist returns the masked ranklist of contest, creating it from
// full's params on first use. Creation re-reads the contest under its own
// key so concurrent first submissions of different users create one list.
func (s *ContestService) maskedRanklist(ctx context.Context, contest types.Contest, full types.Ranklist) (types.Ranklist, error) {
	if contest.MaskedRanklistID != 0 {
		rl, err := s.ranklists.Get(ctx, contest.MaskedRanklistID)
		if err != nil {
			return types.Ranklist{}, storageErr("load masked ranklist", err)
		}
		return rl, nil
	}

	key := keylock.Key{Namespace: maskedRanklistNamespace, ContestID: contest.ID}
	return keylock.RunExclusive(s.locks, key, func() (types.Ranklist, error) {
		current, err := s.loadContest(ctx, contest.ID)
		if err != nil {
			return types.Ranklist{}, err
		}
		if current.MaskedRanklistID != 0 {
			rl, err := s.ranklists.Get(ctx, current.MaskedRanklistID)
			if err != nil {
				return types.Ranklist{}, storageErr("load masked ranklist", err)
			}
			return rl, nil
		}

		rl, err := s.ranklists.Create(ctx, types.Ranklist{Params: full.Params})
		if err != nil {
			return types.Ranklist{}, storageErr("create masked ranklist", err)
		}
		current.MaskedRanklistID = rl.ID
		if _, err := s.contests.Update(ctx, current); err != nil {
			return types.Ranklist{}, storageErr("save contest", err)
		}
		s.invalidate(contest.ID)

		s.log.Info().Int("contest_id", contest.ID).Int("ranklist_id", rl.ID).Msg("masked ranklist created")
		return rl, nil
	})
}

// Standings returns the ordered full or masked ranklist. A masked ranklist
// that does not exist yet yields no rows.
func (s *ContestService) Standings(ctx context.Context, contestID int, masked bool) ([]types.Standing, error) {
	contest, err := s.Get(ctx, contestID)
	if err != nil {
		return nil, err
	}
	strategy, err := scoring.ForType(contest.Type)
	if err != nil {
		return nil, err
	}

	id := contest.RanklistID
	if masked {
		id = contest.MaskedRanklistID
	}
	if id == 0 {
		return []types.Standing{}, nil
	}

	rl, err := s.ranklists.Get(ctx, id)
	if err != nil {
		return nil, storageErr("load ranklist", err)
	}
	rl.Entries, err = s.ranklists.Entries(ctx, id)
	if err != nil {
		return nil, storageErr("load ranklist entries", err)
	}
	return ranking.Standings(strategy, rl), nil
}

// Visibility returns what contestants of the contest may see.
func (s *ContestService) Visibility(ctx context.Context, contestID int) (scoring.Visibility, error) {
	contest, err := s.Get(ctx, contestID)
	if err != nil {
		return scoring.Visibility{}, err
	}
	strategy, err := scoring.ForType(contest.Type)
	if err != nil {
		return scoring.Visibility{}, err
	}
	return strategy.Visibility(contest), nil
}

// IsSupervisor reports whether the user may manage the contest.
// Unknown users are not supervisors.
func (s *ContestService) IsSupervisor(ctx context.Context, contestID, userID int) (bool, error) {
	contest, err := s.Get(ctx, contestID)
	if err != nil {
		return false, err
	}
	user, err := s.User(ctx, userID)
	if err != nil {
		return false, err
	}
	return contest.IsSupervisor(user), nil
}

// User returns the user with id, or the zero user when there is none.
func (s *ContestService) User(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, nil
		}
		return types.User{}, storageErr("load user", err)
	}
	return user, nil
}

// SetProblems replaces the contest's problem list. Unknown and repeated
// ids are dropped; the order of the rest is kept.
func (s *ContestService) SetProblems(ctx context.Context, contestID int, ids []int) (types.Contest, error) {
	problems, err := s.existingProblems(ctx, ids)
	if err != nil {
		return types.Contest{}, err
	}

	// Contest record writes share the key guarding masked ranklist creation.
	key := keylock.Key{Namespace: maskedRanklistNamespace, ContestID: contestID}
	return keylock.RunExclusive(s.locks, key, func() (types.Contest, error) {
		contest, err := s.loadContest(ctx, contestID)
		if err != nil {
			return types.Contest{}, err
		}
		contest.Problems = problems
		updated, err := s.contests.Update(ctx, contest)
		if err != nil {
			return types.Contest{}, storageErr("save contest", err)
		}
		s.invalidate(contestID)
		return updated, nil
	})
}

func (s *ContestService) existingProblems(ctx context.Context, ids []int) ([]int, error) {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(out, id) {
			continue
		}
		ok, err := s.problems.Exists(ctx, id)
		if err != nil {
			return nil, storageErr("check problem", err)
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *ContestService) loadContest(ctx context.Context, id int) (types.Contest, error) {
	contest, err := s.contests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Contest{}, fmt.Errorf("%w: %d", ErrContestNotFound, id)
		}
		return types.Contest{}, storageErr("load contest", err)
	}
	return contest, nil
}

func cloneContest(c types.Contest) types.Contest {
	c.Problems = slices.Clone(c.Problems)
	c.Admins = slices.Clone(c.Admins)
	return c
}
