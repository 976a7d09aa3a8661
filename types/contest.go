package types

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ContestType selects the scoring and visibility rules of a contest.
type ContestType string

// Supported contest types.
const (
	// ContestTypeICPC ranks by solved count, then by penalty time.
	ContestTypeICPC ContestType = "icpc"

	// ContestTypeIOI keeps the best score per problem and shows it to contestants.
	ContestTypeIOI ContestType = "ioi"

	// ContestTypeNOI keeps the latest score per problem and hides results.
	ContestTypeNOI ContestType = "noi"
)

// ParseContestType normalizes a contest type name. The legacy name "acm"
// is accepted as an alias of ICPC.
func ParseContestType(raw string) (ContestType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "icpc", "acm":
		return ContestTypeICPC, nil
	case "ioi":
		return ContestTypeIOI, nil
	case "noi":
		return ContestTypeNOI, nil
	default:
		return "", fmt.Errorf("unknown contest type %q", raw)
	}
}

func (t *ContestType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseContestType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Contest represents a timed competition over an ordered set of problems.
// All times are unix seconds.
type Contest struct {
	// ID is the unique identifier of the contest.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the contest.
	Title string `json:"title" db:"title"`

	// Subtitle is an optional short description shown under the title.
	Subtitle string `json:"subtitle" db:"subtitle"`

	// StartTime is the first second at which submissions count.
	StartTime int64 `json:"start_time" db:"start_time"`

	// RankStopTime freezes the masked ranklist. Submissions at or after
	// this instant are counted in the full ranklist only.
	// Zero disables the freeze.
	RankStopTime int64 `json:"rank_stop_time" db:"rank_stop_time"`

	// EndTime is the last second at which submissions count.
	EndTime int64 `json:"end_time" db:"end_time"`

	// HolderID identifies the user who owns the contest.
	HolderID int `json:"holder_id" db:"holder_id"`

	// Type governs scoring and visibility.
	Type ContestType `json:"type" db:"type"`

	// Information is the contest announcement shown to contestants.
	Information string `json:"information" db:"information"`

	// AfterInformation is shown once the contest has ended, typically the
	// editorial or closing notes.
	AfterInformation string `json:"after_information" db:"after_information"`

	// Problems is the ordered list of problem identifiers.
	Problems []int `json:"problems" db:"problems"`

	// Admins lists additional users allowed to supervise the contest.
	Admins []int `json:"admins" db:"admins"`

	// RanklistID references the full ranklist.
	RanklistID int `json:"ranklist_id" db:"ranklist_id"`

	// MaskedRanklistID references the masked ranklist.
	// Zero until the first submission creates it.
	MaskedRanklistID int `json:"masked_ranklist_id" db:"masked_ranklist_id"`

	IsPublic            bool `json:"is_public" db:"is_public"`
	ShowStatistics      bool `json:"show_statistics" db:"show_statistics"`
	AllowSeeingOthers   bool `json:"allow_seeing_others" db:"allow_seeing_others"`
	AllowSeeingSolution bool `json:"allow_seeing_solution" db:"allow_seeing_solution"`
}

// InWindow reports whether t lies within [StartTime, EndTime].
func (c Contest) InWindow(t int64) bool {
	return t >= c.StartTime && t <= c.EndTime
}

// IsRunning reports whether now lies within [StartTime, EndTime).
func (c Contest) IsRunning(now int64) bool {
	return now >= c.StartTime && now < c.EndTime
}

// IsEnded reports whether the contest is over at now.
func (c Contest) IsEnded(now int64) bool {
	return now >= c.EndTime
}

// Frozen reports whether a submission made at t is hidden from the masked ranklist.
func (c Contest) Frozen(t int64) bool {
	return c.RankStopTime > 0 && t >= c.RankStopTime
}

// HasProblem reports whether the problem belongs to the contest.
func (c Contest) HasProblem(problemID int) bool {
	return slices.Contains(c.Problems, problemID)
}

// IsSupervisor reports whether user may manage the contest.
func (c Contest) IsSupervisor(user User) bool {
	if user.ID == 0 {
		return false
	}
	return user.IsAdmin() || c.HolderID == user.ID || slices.Contains(c.Admins, user.ID)
}

// SolutionVisible reports whether contestants may see the solution file set.
func (c Contest) SolutionVisible(now int64) bool {
	return c.AllowSeeingSolution && c.IsEnded(now)
}
