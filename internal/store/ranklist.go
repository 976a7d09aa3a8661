package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jjudge-oj/contestd/types"
)

// RanklistRepository handles persistence for ranklists. Entries are stored
// one row per (ranklist, user) so that updates for different users never
// overwrite each other.
type RanklistRepository struct {
	db *sql.DB
}

func NewRanklistRepository(db *sql.DB) *RanklistRepository {
	return &RanklistRepository{db: db}
}

// Get returns the ranklist header. Entries are not loaded.
func (r *RanklistRepository) Get(ctx context.Context, id int) (types.Ranklist, error) {
	const query = `SELECT id, params FROM ranklists WHERE id = $1`

	var rl types.Ranklist
	var paramsJSON []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&rl.ID, &paramsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Ranklist{}, ErrNotFound
		}
		return types.Ranklist{}, err
	}
	if err := json.Unmarshal(paramsJSON, &rl.Params); err != nil {
		return types.Ranklist{}, err
	}
	return rl, nil
}

func (r *RanklistRepository) Create(ctx context.Context, rl types.Ranklist) (types.Ranklist, error) {
	paramsJSON, err := json.Marshal(rl.Params)
	if err != nil {
		return types.Ranklist{}, err
	}

	const query = `
		INSERT INTO ranklists (params, created_at)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, paramsJSON, time.Now()).Scan(&rl.ID); err != nil {
		return types.Ranklist{}, err
	}
	rl.Entries = nil
	return rl, nil
}

// Entries returns every entry of the ranklist keyed by user id.
func (r *RanklistRepository) Entries(ctx context.Context, ranklistID int) (map[int]types.RankEntry, error) {
	const query = `SELECT user_id, entry FROM ranklist_entries WHERE ranklist_id = $1`
	rows, err := r.db.QueryContext(ctx, query, ranklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[int]types.RankEntry)
	for rows.Next() {
		var userID int
		var entryJSON []byte
		if err := rows.Scan(&userID, &entryJSON); err != nil {
			return nil, err
		}
		var entry types.RankEntry
		if err := json.Unmarshal(entryJSON, &entry); err != nil {
			return nil, err
		}
		entries[userID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// PutEntry inserts or replaces the entry of entry.UserID.
func (r *RanklistRepository) PutEntry(ctx context.Context, ranklistID int, entry types.RankEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO ranklist_entries (ranklist_id, user_id, entry, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ranklist_id, user_id)
		DO UPDATE SET entry = EXCLUDED.entry, updated_at = EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, query, ranklistID, entry.UserID, entryJSON, time.Now())
	return err
}
