package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JudgeState is a judged submission as delivered by the judging system.
// It carries only the fields the ranking pipeline consumes.
type JudgeState struct {
	// SubmissionID identifies the judged submission.
	SubmissionID int64 `json:"submission_id"`

	// UserID identifies the contestant who submitted.
	UserID int `json:"user_id"`

	// ProblemID identifies the problem the submission is for.
	ProblemID int `json:"problem_id"`

	// SubmitTime is the unix time (seconds) at which the submission was made.
	SubmitTime int64 `json:"submit_time"`

	// Verdict is the final outcome of judging.
	Verdict Verdict `json:"verdict"`

	// Score is the awarded score in the range [0, 100].
	Score float64 `json:"score"`
}

// Verdict represents the outcome of judging a submission.
type Verdict int

// Supported verdict values.
const (
	// VerdictPending indicates the submission has been received
	// but has not started judging yet.
	VerdictPending Verdict = iota

	// VerdictJudging indicates the submission is currently being judged.
	VerdictJudging

	// VerdictAccepted indicates the submission passed all test cases.
	VerdictAccepted

	// VerdictWrongAnswer indicates the submission produced incorrect output.
	VerdictWrongAnswer

	// VerdictTimeLimitExceeded indicates the submission exceeded the time limit.
	VerdictTimeLimitExceeded

	// VerdictMemoryLimitExceeded indicates the submission exceeded the memory limit.
	VerdictMemoryLimitExceeded

	// VerdictRuntimeError indicates a runtime error occurred during execution.
	VerdictRuntimeError

	// VerdictCompilationError indicates the submission failed to compile.
	VerdictCompilationError

	// VerdictSystemError indicates an internal system failure occurred.
	VerdictSystemError

	// VerdictInternalError indicates an unexpected internal error.
	VerdictInternalError

	// VerdictSkipped indicates the submission was skipped.
	VerdictSkipped
)

var verdictNames = map[Verdict]string{
	VerdictPending:             "PENDING",
	VerdictJudging:             "JUDGING",
	VerdictAccepted:            "AC",
	VerdictWrongAnswer:         "WA",
	VerdictTimeLimitExceeded:   "TLE",
	VerdictMemoryLimitExceeded: "MLE",
	VerdictRuntimeError:        "RE",
	VerdictCompilationError:    "CE",
	VerdictSystemError:         "SE",
	VerdictInternalError:       "IE",
	VerdictSkipped:             "SKIPPED",
}

// String returns the compact string representation of the verdict
// used in API responses and logs.
func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "UNKNOWN"
}

// Final reports whether judging has produced a result for the submission.
func (v Verdict) Final() bool {
	return v != VerdictPending && v != VerdictJudging
}

// Penalized reports whether the verdict counts as a rejected attempt
// in penalty-based ranking. Compilation and system failures are not
// the contestant's attempt.
func (v Verdict) Penalized() bool {
	switch v {
	case VerdictWrongAnswer, VerdictTimeLimitExceeded, VerdictMemoryLimitExceeded, VerdictRuntimeError:
		return true
	default:
		return false
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts both the compact name and the numeric value.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		var n int
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("invalid verdict %s", string(data))
		}
		if _, ok := verdictNames[Verdict(n)]; !ok {
			return fmt.Errorf("invalid verdict %d", n)
		}
		*v = Verdict(n)
		return nil
	}
	for verdict, candidate := range verdictNames {
		if strings.EqualFold(candidate, strings.TrimSpace(name)) {
			*v = verdict
			return nil
		}
	}
	return fmt.Errorf("invalid verdict %q", name)
}
