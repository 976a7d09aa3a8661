package services

import (
	"errors"
	"fmt"

	"github.com/jjudge-oj/contestd/internal/fileset"
)

var (
	// ErrInvalidProblem is returned when a submission names a problem
	// that is not part of the contest.
	ErrInvalidProblem = errors.New("problem is not part of the contest")

	// ErrContestNotFound is returned when the contest does not exist.
	ErrContestNotFound = errors.New("contest not found")

	// ErrInvalidContest is returned when a contest definition is rejected.
	ErrInvalidContest = errors.New("invalid contest")

	// ErrNoData is returned when an archive is requested for an empty file set.
	ErrNoData = errors.New("file set is empty")

	// ErrInvalidFilename is returned for file names that are not a single
	// path element.
	ErrInvalidFilename = fileset.ErrInvalidFilename

	// ErrInvalidFileSet is returned for an unknown file set kind.
	ErrInvalidFileSet = errors.New("invalid file set")

	// ErrQuotaExceeded matches every *QuotaExceededError.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrStorageUnavailable wraps failures of the underlying repositories
	// or filesystem. The operation may have been partially applied and is
	// safe to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// QuotaLimit names the limit an upload ran into.
type QuotaLimit string

const (
	QuotaSize  QuotaLimit = "size"
	QuotaCount QuotaLimit = "count"
)

// QuotaExceededError reports a rejected upload.
type QuotaExceededError struct {
	Limit QuotaLimit
	Max   int64
}

func (e *QuotaExceededError) Error() string {
	if e.Limit == QuotaCount {
		return fmt.Sprintf("quota exceeded: more than %d files", e.Max)
	}
	return fmt.Sprintf("quota exceeded: more than %d bytes", e.Max)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
