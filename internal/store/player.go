package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jjudge-oj/contestd/types"
)

// PlayerRepository handles persistence for contest players.
type PlayerRepository struct {
	db *sql.DB
}

func NewPlayerRepository(db *sql.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindInContest returns the player of userID in contestID.
func (r *PlayerRepository) FindInContest(ctx context.Context, contestID, userID int) (types.ContestPlayer, error) {
	const query = `
		SELECT id, contest_id, user_id, results, frozen_results, pending, updated_at
		FROM contest_players
		WHERE contest_id = $1 AND user_id = $2`

	var player types.ContestPlayer
	var resultsJSON, frozenJSON, pendingJSON []byte
	err := r.db.QueryRowContext(ctx, query, contestID, userID).Scan(
		&player.ID,
		&player.ContestID,
		&player.UserID,
		&resultsJSON,
		&frozenJSON,
		&pendingJSON,
		&player.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ContestPlayer{}, ErrNotFound
		}
		return types.ContestPlayer{}, err
	}

	if err := json.Unmarshal(resultsJSON, &player.Results); err != nil {
		return types.ContestPlayer{}, err
	}
	if err := json.Unmarshal(frozenJSON, &player.FrozenResults); err != nil {
		return types.ContestPlayer{}, err
	}
	if err := json.Unmarshal(pendingJSON, &player.Pending); err != nil {
		return types.ContestPlayer{}, err
	}
	return player.Clone(), nil
}

func (r *PlayerRepository) Create(ctx context.Context, player types.ContestPlayer) (types.ContestPlayer, error) {
	player = player.Clone()
	player.UpdatedAt = time.Now()

	resultsJSON, frozenJSON, pendingJSON, err := marshalPlayerState(player)
	if err != nil {
		return types.ContestPlayer{}, err
	}

	const query = `
		INSERT INTO contest_players (contest_id, user_id, results, frozen_results, pending, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		player.ContestID,
		player.UserID,
		resultsJSON,
		frozenJSON,
		pendingJSON,
		player.UpdatedAt,
	).Scan(&player.ID); err != nil {
		return types.ContestPlayer{}, err
	}
	return player, nil
}

func (r *PlayerRepository) Update(ctx context.Context, player types.ContestPlayer) (types.ContestPlayer, error) {
	player.UpdatedAt = time.Now()

	resultsJSON, frozenJSON, pendingJSON, err := marshalPlayerState(player)
	if err != nil {
		return types.ContestPlayer{}, err
	}

	const query = `
		UPDATE contest_players
		SET results = $1,
			frozen_results = $2,
			pending = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, resultsJSON, frozenJSON, pendingJSON, player.UpdatedAt, player.ID)
	if err != nil {
		return types.ContestPlayer{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.ContestPlayer{}, err
	}
	if affected == 0 {
		return types.ContestPlayer{}, ErrNotFound
	}
	return player, nil
}

func marshalPlayerState(player types.ContestPlayer) (results, frozen, pending []byte, err error) {
	if results, err = json.Marshal(player.Results); err != nil {
		return nil, nil, nil, err
	}
	if frozen, err = json.Marshal(player.FrozenResults); err != nil {
		return nil, nil, nil, err
	}
	if pending, err = json.Marshal(player.Pending); err != nil {
		return nil, nil, nil, err
	}
	return results, frozen, pending, nil
}
