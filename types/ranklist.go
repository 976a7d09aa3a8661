package types

// DefaultPenaltyMinutes is the ICPC penalty per rejected attempt.
const DefaultPenaltyMinutes = 20

// RankingParams are the contest-type-specific ranking weights.
// The masked ranklist starts with a copy of the full ranklist's params.
type RankingParams struct {
	// PenaltyMinutes is added per rejected attempt on a solved problem (ICPC).
	PenaltyMinutes int `json:"penalty_minutes"`

	// ProblemWeights multiplies per-problem scores (IOI, NOI).
	// Problems without an entry weigh 1.
	ProblemWeights map[int]float64 `json:"problem_weights,omitempty"`
}

// Penalty returns the per-attempt penalty in minutes.
func (p RankingParams) Penalty() int {
	if p.PenaltyMinutes <= 0 {
		return DefaultPenaltyMinutes
	}
	return p.PenaltyMinutes
}

// Weight returns the score multiplier of a problem.
func (p RankingParams) Weight(problemID int) float64 {
	if w, ok := p.ProblemWeights[problemID]; ok {
		return w
	}
	return 1
}

// RankCell is the per-problem cell of a ranklist row.
type RankCell struct {
	Score      float64 `json:"score"`
	Attempts   int     `json:"attempts"`
	Accepted   bool    `json:"accepted"`
	AcceptTime int64   `json:"accept_time,omitempty"`

	// Pending counts submissions hidden by the freeze.
	Pending int `json:"pending,omitempty"`
}

// RankEntry is one contestant's row in a ranklist.
type RankEntry struct {
	UserID int `json:"user_id"`

	// Score is the weighted total (IOI, NOI).
	Score float64 `json:"score"`

	// Solved is the number of accepted problems.
	Solved int `json:"solved"`

	// Penalty is the accumulated penalty time in seconds (ICPC).
	Penalty int64 `json:"penalty"`

	// LastAcceptTime is the latest first-acceptance, used as a tie-break.
	LastAcceptTime int64 `json:"last_accept_time"`

	// Problems holds per-problem cells keyed by problem id.
	Problems map[int]RankCell `json:"problems"`

	// Pending is the total number of submissions hidden by the freeze.
	Pending int `json:"pending,omitempty"`
}

// Ranklist maps contestants to their rows for one view (full or masked).
// It is unordered; ranks are derived when it is read.
type Ranklist struct {
	ID      int               `json:"id"`
	Params  RankingParams     `json:"params"`
	Entries map[int]RankEntry `json:"entries"`
}

// Standing is a ranked row.
type Standing struct {
	Rank int `json:"rank"`
	RankEntry
}
