package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/jjudge-oj/contestd/config"
	"github.com/jjudge-oj/contestd/types"
)

// Memory bundles in-process repositories. Records are copied on the way in
// and out so callers never share maps with the store.
type Memory struct {
	Contests  *MemoryContestRepository
	Players   *MemoryPlayerRepository
	Ranklists *MemoryRanklistRepository
	Users     *MemoryUserRepository
	Problems  *MemoryProblemRepository
}

// NewMemory returns empty in-memory repositories.
func NewMemory() *Memory {
	return &Memory{
		Contests:  &MemoryContestRepository{rows: map[int]types.Contest{}},
		Players:   &MemoryPlayerRepository{rows: map[playerKey]types.ContestPlayer{}},
		Ranklists: &MemoryRanklistRepository{rows: map[int]types.Ranklist{}},
		Users:     &MemoryUserRepository{rows: map[int]types.User{}},
		Problems:  &MemoryProblemRepository{rows: map[int]struct{}{}},
	}
}

// Seed registers the users and problems of seed.
func (m *Memory) Seed(seed config.Seed) {
	for _, u := range seed.Users {
		m.Users.Put(types.User{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role})
	}
	m.Problems.Add(seed.Problems...)
}

// MemoryContestRepository handles in-memory persistence for contests.
type MemoryContestRepository struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]types.Contest
}

func (r *MemoryContestRepository) Get(_ context.Context, id int) (types.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return types.Contest{}, ErrNotFound
	}
	return copyContest(c), nil
}

func (r *MemoryContestRepository) Create(_ context.Context, contest types.Contest) (types.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	contest.ID = r.nextID
	r.rows[contest.ID] = copyContest(contest)
	return contest, nil
}

func (r *MemoryContestRepository) Update(_ context.Context, contest types.Contest) (types.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[contest.ID]; !ok {
		return types.Contest{}, ErrNotFound
	}
	r.rows[contest.ID] = copyContest(contest)
	return contest, nil
}

func copyContest(c types.Contest) types.Contest {
	c.Problems = append([]int(nil), c.Problems...)
	c.Admins = append([]int(nil), c.Admins...)
	return c
}

type playerKey struct {
	contestID int
	userID    int
}

// MemoryPlayerRepository handles in-memory persistence for contest players.
type MemoryPlayerRepository struct {
	mu     sync.Mutex
	nextID int
	rows   map[playerKey]types.ContestPlayer
}

func (r *MemoryPlayerRepository) FindInContest(_ context.Context, contestID, userID int) (types.ContestPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[playerKey{contestID, userID}]
	if !ok {
		return types.ContestPlayer{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryPlayerRepository) Create(_ context.Context, player types.ContestPlayer) (types.ContestPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	player = player.Clone()
	player.ID = r.nextID
	player.UpdatedAt = time.Now()
	r.rows[playerKey{player.ContestID, player.UserID}] = player.Clone()
	return player, nil
}

func (r *MemoryPlayerRepository) Update(_ context.Context, player types.ContestPlayer) (types.ContestPlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := playerKey{player.ContestID, player.UserID}
	if existing, ok := r.rows[key]; !ok || existing.ID != player.ID {
		return types.ContestPlayer{}, ErrNotFound
	}
	player.UpdatedAt = time.Now()
	r.rows[key] = player.Clone()
	return player, nil
}

// Count returns the number of players stored for a contest.
func (r *MemoryPlayerRepository) Count(contestID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.rows {
		if k.contestID == contestID {
			n++
		}
	}
	return n
}

// MemoryRanklistRepository handles in-memory persistence for ranklists and their entries.
type MemoryRanklistRepository struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]types.Ranklist
}

func (r *MemoryRanklistRepository) Get(_ context.Context, id int) (types.Ranklist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.rows[id]
	if !ok {
		return types.Ranklist{}, ErrNotFound
	}
	return types.Ranklist{ID: rl.ID, Params: copyParams(rl.Params)}, nil
}

func (r *MemoryRanklistRepository) Create(_ context.Context, rl types.Ranklist) (types.Ranklist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := types.Ranklist{
		ID:      r.nextID,
		Params:  copyParams(rl.Params),
		Entries: map[int]types.RankEntry{},
	}
	r.rows[stored.ID] = stored
	return types.Ranklist{ID: stored.ID, Params: copyParams(stored.Params)}, nil
}

func (r *MemoryRanklistRepository) Entries(_ context.Context, ranklistID int) (map[int]types.RankEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.rows[ranklistID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[int]types.RankEntry, len(rl.Entries))
	for id, e := range rl.Entries {
		out[id] = copyEntry(e)
	}
	return out, nil
}

func (r *MemoryRanklistRepository) PutEntry(_ context.Context, ranklistID int, entry types.RankEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.rows[ranklistID]
	if !ok {
		return ErrNotFound
	}
	rl.Entries[entry.UserID] = copyEntry(entry)
	return nil
}

// Count returns the number of ranklists created.
func (r *MemoryRanklistRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func copyParams(p types.RankingParams) types.RankingParams {
	if p.ProblemWeights != nil {
		p.ProblemWeights = maps.Clone(p.ProblemWeights)
	}
	return p
}

func copyEntry(e types.RankEntry) types.RankEntry {
	if e.Problems != nil {
		e.Problems = maps.Clone(e.Problems)
	}
	return e
}

// MemoryUserRepository holds the users known to a memory store.
type MemoryUserRepository struct {
	mu   sync.Mutex
	rows map[int]types.User
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return u, nil
}

// Put stores user under its own id.
func (r *MemoryUserRepository) Put(user types.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[user.ID] = user
}

// MemoryProblemRepository holds the problem ids known to a memory store.
type MemoryProblemRepository struct {
	mu   sync.Mutex
	rows map[int]struct{}
}

func (r *MemoryProblemRepository) Exists(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok, nil
}

// Add registers problem ids.
func (r *MemoryProblemRepository) Add(ids ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.rows[id] = struct{}{}
	}
}
