// Package ranking maintains ranklist entries and derives standings from them.
package ranking

import (
	"cmp"
	"maps"
	"slices"

	"github.com/jjudge-oj/contestd/internal/scoring"
	"github.com/jjudge-oj/contestd/types"
)

// UpdatePlayer recomputes the player's entry, stores it in rl and returns it.
//
// The full view is built from every counted submission. The masked view is
// built from submissions before the rank stop time only; problems with
// submissions after it carry a pending count instead of their new result.
// Problems no longer part of the contest are left out.
func UpdatePlayer(contest types.Contest, s scoring.Strategy, rl *types.Ranklist, player types.ContestPlayer, masked bool) types.RankEntry {
	results := player.Results
	var pending map[int]int
	if masked {
		results = player.FrozenResults
		pending = player.Pending
	}

	problemIDs := slices.Collect(maps.Keys(results))
	for pid, n := range pending {
		if _, ok := results[pid]; !ok && n > 0 {
			problemIDs = append(problemIDs, pid)
		}
	}
	slices.Sort(problemIDs)

	entry := types.RankEntry{
		UserID:   player.UserID,
		Problems: make(map[int]types.RankCell, len(problemIDs)),
	}
	for _, pid := range problemIDs {
		if !contest.HasProblem(pid) {
			continue
		}
		r := results[pid]
		score, solved, penalty := s.Summarize(rl.Params, pid, r)

		cell := types.RankCell{
			Score:      score,
			Attempts:   r.Attempts,
			Accepted:   solved,
			AcceptTime: r.AcceptTime,
			Pending:    pending[pid],
		}
		if cell.Attempts == 0 && cell.Pending == 0 {
			continue
		}
		entry.Problems[pid] = cell
		entry.Score += score
		entry.Pending += cell.Pending
		if solved {
			entry.Solved++
			entry.Penalty += penalty
			entry.LastAcceptTime = max(entry.LastAcceptTime, r.AcceptTime)
		}
	}

	if rl.Entries == nil {
		rl.Entries = make(map[int]types.RankEntry)
	}
	rl.Entries[player.UserID] = entry
	return entry
}

// Standings orders the entries of rl. Entries the strategy cannot tell apart
// share a rank and are listed by user id.
func Standings(s scoring.Strategy, rl types.Ranklist) []types.Standing {
	entries := slices.Collect(maps.Values(rl.Entries))
	slices.SortFunc(entries, func(a, b types.RankEntry) int {
		switch {
		case s.Less(a, b):
			return -1
		case s.Less(b, a):
			return 1
		default:
			return cmp.Compare(a.UserID, b.UserID)
		}
	})

	out := make([]types.Standing, len(entries))
	for i, e := range entries {
		rank := i + 1
		if i > 0 && !s.Less(entries[i-1], e) {
			rank = out[i-1].Rank
		}
		out[i] = types.Standing{Rank: rank, RankEntry: e}
	}
	return out
}
