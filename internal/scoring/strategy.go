// Package scoring folds judged submissions into contestant aggregates.
// Each contest type has its own Strategy; nothing here performs I/O.
package scoring

import (
	"fmt"

	"github.com/jjudge-oj/contestd/types"
)

// Visibility describes what contestants may see while the contest runs.
type Visibility struct {
	SeeOthers    bool `json:"see_others"`
	SeeScore     bool `json:"see_score"`
	SeeResult    bool `json:"see_result"`
	SeeTestcases bool `json:"see_testcases"`
}

// Strategy holds the contest-type-specific rules.
type Strategy interface {
	// Type returns the contest type the strategy implements.
	Type() types.ContestType

	// Fold returns the problem aggregate after js is applied to prev.
	Fold(prev types.ProblemResult, js types.JudgeState, contest types.Contest) types.ProblemResult

	// Summarize converts a problem aggregate into its ranklist contribution.
	Summarize(params types.RankingParams, problemID int, result types.ProblemResult) (score float64, solved bool, penalty int64)

	// Less reports whether a ranks strictly ahead of b.
	Less(a, b types.RankEntry) bool

	// Visibility returns what contestants are allowed to see.
	Visibility(contest types.Contest) Visibility
}

// ForType returns the strategy for a contest type.
func ForType(t types.ContestType) (Strategy, error) {
	switch t {
	case types.ContestTypeICPC:
		return ICPC{}, nil
	case types.ContestTypeIOI:
		return IOI{}, nil
	case types.ContestTypeNOI:
		return NOI{}, nil
	default:
		return nil, fmt.Errorf("no scoring strategy for contest type %q", t)
	}
}

// Apply folds js into a copy of player. The full results always receive
// the submission; the frozen results only receive it before the rank stop
// time, otherwise it is counted as pending. Submissions the strategy does
// not count leave the pending counter untouched.
func Apply(s Strategy, contest types.Contest, player types.ContestPlayer, js types.JudgeState) types.ContestPlayer {
	out := player.Clone()
	pid := js.ProblemID

	prev := out.Results[pid]
	next := s.Fold(prev, js, contest)
	out.Results[pid] = next

	if contest.Frozen(js.SubmitTime) {
		if next.Attempts != prev.Attempts {
			out.Pending[pid]++
		}
		return out
	}

	out.FrozenResults[pid] = s.Fold(out.FrozenResults[pid], js, contest)
	return out
}
