package types

import (
	"maps"
	"time"
)

// ProblemResult is a contestant's aggregated state on one problem.
// Which fields are meaningful depends on the contest type.
type ProblemResult struct {
	// Attempts is the number of counted submissions.
	Attempts int `json:"attempts"`

	// Accepted is set once an accepted verdict has been seen.
	Accepted bool `json:"accepted"`

	// AcceptTime is the first acceptance, in seconds since contest start.
	AcceptTime int64 `json:"accept_time"`

	// WrongBeforeAccept counts penalized attempts before the first acceptance.
	WrongBeforeAccept int `json:"wrong_before_accept"`

	// Score is the score currently credited for the problem.
	Score float64 `json:"score"`

	// SubmissionID is the submission the credited result comes from.
	SubmissionID int64 `json:"submission_id"`

	// LastSubmitTime is the submit time of the latest folded submission.
	LastSubmitTime int64 `json:"last_submit_time"`
}

// ContestPlayer holds one contestant's aggregate standing in one contest.
// It is created lazily on the first valid submission.
type ContestPlayer struct {
	// ID is the unique identifier of the player record.
	ID int `json:"id" db:"id"`

	// ContestID identifies the owning contest.
	ContestID int `json:"contest_id" db:"contest_id"`

	// UserID identifies the contestant.
	UserID int `json:"user_id" db:"user_id"`

	// Results aggregates every counted submission, keyed by problem id.
	Results map[int]ProblemResult `json:"results" db:"results"`

	// FrozenResults aggregates only submissions made before the rank stop time.
	FrozenResults map[int]ProblemResult `json:"frozen_results" db:"frozen_results"`

	// Pending counts submissions made after the rank stop time, keyed by problem id.
	Pending map[int]int `json:"pending" db:"pending"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewContestPlayer returns an empty player for (contestID, userID).
func NewContestPlayer(contestID, userID int) ContestPlayer {
	return ContestPlayer{
		ContestID:     contestID,
		UserID:        userID,
		Results:       map[int]ProblemResult{},
		FrozenResults: map[int]ProblemResult{},
		Pending:       map[int]int{},
	}
}

// Clone returns a deep copy so that callers can derive a new state
// without mutating the original.
func (p ContestPlayer) Clone() ContestPlayer {
	out := p
	out.Results = cloneOrEmpty(p.Results)
	out.FrozenResults = cloneOrEmpty(p.FrozenResults)
	out.Pending = cloneOrEmpty(p.Pending)
	return out
}

func cloneOrEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return maps.Clone(m)
}
