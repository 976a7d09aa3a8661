package scoring

import "github.com/jjudge-oj/contestd/types"

// IOI keeps the best score ever achieved on each problem.
type IOI struct{}

func (IOI) Type() types.ContestType { return types.ContestTypeIOI }

func (IOI) Fold(prev types.ProblemResult, js types.JudgeState, contest types.Contest) types.ProblemResult {
	if !js.Verdict.Final() {
		return prev
	}

	out := prev
	out.Attempts++
	out.LastSubmitTime = max(out.LastSubmitTime, js.SubmitTime)
	if prev.Attempts == 0 || js.Score > prev.Score {
		out.Score = js.Score
		out.SubmissionID = js.SubmissionID
	}
	if js.Verdict == types.VerdictAccepted && !out.Accepted {
		out.Accepted = true
		out.AcceptTime = js.SubmitTime - contest.StartTime
	}
	return out
}

func (IOI) Summarize(params types.RankingParams, problemID int, result types.ProblemResult) (float64, bool, int64) {
	return weighted(params, problemID, result)
}

func (IOI) Less(a, b types.RankEntry) bool {
	return a.Score > b.Score
}

func (IOI) Visibility(types.Contest) Visibility {
	return Visibility{
		SeeScore:     true,
		SeeResult:    true,
		SeeTestcases: true,
	}
}

func weighted(params types.RankingParams, problemID int, result types.ProblemResult) (float64, bool, int64) {
	if result.Attempts == 0 {
		return 0, false, 0
	}
	return result.Score * params.Weight(problemID), result.Accepted, 0
}
