// Package quota persists per-owner daily search counts.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository stores counts in the quota_usage table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DailyRunCount(ctx context.Context, ownerID, day string) (int, error) {
	const query = `SELECT runs FROM quota_usage WHERE owner_id = ? AND day = ?`

	var runs int
	err := r.db.QueryRowContext(ctx, query, ownerID, day).Scan(&runs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily runs: %w", err)
	}
	return runs, nil
}

func (r *Repository) IncrementDailyRunCount(ctx context.Context, ownerID, day string) error {
	const query = `INSERT INTO quota_usage (owner_id, day, runs) VALUES (?, ?, 1)
		ON CONFLICT (owner_id, day) DO UPDATE SET
			runs = runs + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`

	if _, err := r.db.ExecContext(ctx, query, ownerID, day); err != nil {
		return fmt.Errorf("increment daily runs: %w", err)
	}
	return nil
}

// Prune deletes rows for days before the given day and returns how many
// were removed.
func (r *Repository) Prune(ctx context.Context, beforeDay string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quota_usage WHERE day < ?`, beforeDay)
	if err != nil {
		return 0, fmt.Errorf("prune quota: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
