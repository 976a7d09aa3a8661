package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jjudge-oj/contestd/types"
)

// ContestRepository handles persistence for contests.
type ContestRepository struct {
	db *sql.DB
}

func NewContestRepository(db *sql.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

const contestColumns = `id, title, subtitle, start_time, rank_stop_time, end_time, holder_id, type,
	information, after_information, problems, admins, ranklist_id, masked_ranklist_id,
	is_public, show_statistics, allow_seeing_others, allow_seeing_solution`

func (r *ContestRepository) Get(ctx context.Context, id int) (types.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`

	var contest types.Contest
	var problemsJSON, adminsJSON []byte
	var maskedID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contest.ID,
		&contest.Title,
		&contest.Subtitle,
		&contest.StartTime,
		&contest.RankStopTime,
		&contest.EndTime,
		&contest.HolderID,
		&contest.Type,
		&contest.Information,
		&contest.AfterInformation,
		&problemsJSON,
		&adminsJSON,
		&contest.RanklistID,
		&maskedID,
		&contest.IsPublic,
		&contest.ShowStatistics,
		&contest.AllowSeeingOthers,
		&contest.AllowSeeingSolution,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Contest{}, ErrNotFound
		}
		return types.Contest{}, err
	}

	if err := json.Unmarshal(problemsJSON, &contest.Problems); err != nil {
		return types.Contest{}, err
	}
	if err := json.Unmarshal(adminsJSON, &contest.Admins); err != nil {
		return types.Contest{}, err
	}
	contest.MaskedRanklistID = int(maskedID.Int64)
	return contest, nil
}

func (r *ContestRepository) Create(ctx context.Context, contest types.Contest) (types.Contest, error) {
	problemsJSON, adminsJSON, err := marshalContestLists(contest)
	if err != nil {
		return types.Contest{}, err
	}

	now := time.Now()
	const query = `
		INSERT INTO contests (title, subtitle, start_time, rank_stop_time, end_time, holder_id, type,
			information, after_information, problems, admins, ranklist_id, masked_ranklist_id,
			is_public, show_statistics, allow_seeing_others, allow_seeing_solution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		contest.Title,
		contest.Subtitle,
		contest.StartTime,
		contest.RankStopTime,
		contest.EndTime,
		contest.HolderID,
		contest.Type,
		contest.Information,
		contest.AfterInformation,
		problemsJSON,
		adminsJSON,
		contest.RanklistID,
		nullableID(contest.MaskedRanklistID),
		contest.IsPublic,
		contest.ShowStatistics,
		contest.AllowSeeingOthers,
		contest.AllowSeeingSolution,
		now,
	).Scan(&contest.ID); err != nil {
		return types.Contest{}, err
	}
	return contest, nil
}

func (r *ContestRepository) Update(ctx context.Context, contest types.Contest) (types.Contest, error) {
	problemsJSON, adminsJSON, err := marshalContestLists(contest)
	if err != nil {
		return types.Contest{}, err
	}

	const query = `
		UPDATE contests
		SET title = $1,
			subtitle = $2,
			start_time = $3,
			rank_stop_time = $4,
			end_time = $5,
			holder_id = $6,
			type = $7,
			information = $8,
			after_information = $9,
			problems = $10,
			admins = $11,
			ranklist_id = $12,
			masked_ranklist_id = $13,
			is_public = $14,
			show_statistics = $15,
			allow_seeing_others = $16,
			allow_seeing_solution = $17,
			updated_at = $18
		WHERE id = $19`
	result, err := r.db.ExecContext(
		ctx,
		query,
		contest.Title,
		contest.Subtitle,
		contest.StartTime,
		contest.RankStopTime,
		contest.EndTime,
		contest.HolderID,
		contest.Type,
		contest.Information,
		contest.AfterInformation,
		problemsJSON,
		adminsJSON,
		contest.RanklistID,
		nullableID(contest.MaskedRanklistID),
		contest.IsPublic,
		contest.ShowStatistics,
		contest.AllowSeeingOthers,
		contest.AllowSeeingSolution,
		time.Now(),
		contest.ID,
	)
	if err != nil {
		return types.Contest{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Contest{}, err
	}
	if affected == 0 {
		return types.Contest{}, ErrNotFound
	}
	return contest, nil
}

func marshalContestLists(contest types.Contest) ([]byte, []byte, error) {
	problems := contest.Problems
	if problems == nil {
		problems = []int{}
	}
	admins := contest.Admins
	if admins == nil {
		admins = []int{}
	}
	problemsJSON, err := json.Marshal(problems)
	if err != nil {
		return nil, nil, err
	}
	adminsJSON, err := json.Marshal(admins)
	if err != nil {
		return nil, nil, err
	}
	return problemsJSON, adminsJSON, nil
}

func nullableID(id int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id != 0}
}
