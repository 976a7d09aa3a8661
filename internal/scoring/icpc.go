package scoring

import "github.com/jjudge-oj/contestd/types"

// ICPC ranks by solved count, then penalty time, then the time of the
// last first-acceptance.
type ICPC struct{}

func (ICPC) Type() types.ContestType { return types.ContestTypeICPC }

func (ICPC) Fold(prev types.ProblemResult, js types.JudgeState, contest types.Contest) types.ProblemResult {
	accepted := js.Verdict == types.VerdictAccepted
	if !accepted && !js.Verdict.Penalized() {
		return prev
	}

	out := prev
	out.Attempts++
	out.LastSubmitTime = max(out.LastSubmitTime, js.SubmitTime)
	if out.Accepted {
		return out
	}

	out.SubmissionID = js.SubmissionID
	if accepted {
		out.Accepted = true
		out.AcceptTime = js.SubmitTime - contest.StartTime
		out.Score = 100
		return out
	}
	out.WrongBeforeAccept++
	return out
}

func (ICPC) Summarize(params types.RankingParams, _ int, result types.ProblemResult) (float64, bool, int64) {
	if !result.Accepted {
		return 0, false, 0
	}
	penalty := result.AcceptTime + int64(result.WrongBeforeAccept)*int64(params.Penalty())*60
	return 1, true, penalty
}

func (ICPC) Less(a, b types.RankEntry) bool {
	if a.Solved != b.Solved {
		return a.Solved > b.Solved
	}
	if a.Penalty != b.Penalty {
		return a.Penalty < b.Penalty
	}
	return a.LastAcceptTime < b.LastAcceptTime
}

func (ICPC) Visibility(contest types.Contest) Visibility {
	return Visibility{
		SeeOthers: contest.AllowSeeingOthers,
		SeeResult: true,
	}
}
