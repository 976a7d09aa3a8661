package scoring

import "github.com/jjudge-oj/contestd/types"

// NOI keeps only the score of the most recent submission on each problem.
// Nothing is shown to contestants until the contest ends.
type NOI struct{}

func (NOI) Type() types.ContestType { return types.ContestTypeNOI }

func (NOI) Fold(prev types.ProblemResult, js types.JudgeState, _ types.Contest) types.ProblemResult {
	if !js.Verdict.Final() {
		return prev
	}

	out := prev
	out.Attempts++
	// Equal submit times: the later delivery wins.
	if prev.Attempts == 0 || js.SubmitTime >= prev.LastSubmitTime {
		out.Score = js.Score
		out.SubmissionID = js.SubmissionID
		out.Accepted = js.Verdict == types.VerdictAccepted
		out.LastSubmitTime = js.SubmitTime
	}
	return out
}

func (NOI) Summarize(params types.RankingParams, problemID int, result types.ProblemResult) (float64, bool, int64) {
	return weighted(params, problemID, result)
}

func (NOI) Less(a, b types.RankEntry) bool {
	return a.Score > b.Score
}

func (NOI) Visibility(types.Contest) Visibility {
	return Visibility{}
}
